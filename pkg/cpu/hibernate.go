package cpu

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// humanReadableState is the JSON-serializable snapshot of CPU control state.
type humanReadableState struct {
	Regs       [8]uint32 `json:"regs"`
	PC         uint32    `json:"pc"`
	SP         uint32    `json:"sp"`
	Z          bool      `json:"z"`
	N          bool      `json:"n"`
	C          bool      `json:"c"`
	V          bool      `json:"v"`
	Halted     bool      `json:"halted"`
	Steps      uint64    `json:"steps"`
	Fault      string    `json:"fault,omitempty"`
	MemorySize int       `json:"memory_size"`
}

// HibernateToBytes serialises the VM state into an in-memory ZIP archive
// holding cpu_state.json and memory.bin.
func (c *CPU) HibernateToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := humanReadableState{
		Regs:       c.Regs,
		PC:         c.PC,
		SP:         c.SP,
		Z:          c.Z,
		N:          c.N,
		C:          c.C,
		V:          c.V,
		Halted:     c.Halted,
		Steps:      c.Steps,
		MemorySize: len(c.Memory),
	}
	if c.Fault != nil {
		state.Fault = c.Fault.Error()
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal cpu_state: %w", err)
	}
	if err := writeZipEntry(zw, "cpu_state.json", jsonData); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "memory.bin", c.Memory); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes applies an archive produced by HibernateToBytes. Memory
// is resized to the saved size.
func (c *CPU) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "cpu_state.json")
	if err != nil {
		return err
	}
	var state humanReadableState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal cpu_state: %w", err)
	}

	mem, err := readZipEntry(fileMap, "memory.bin")
	if err != nil {
		return err
	}
	if len(mem) != state.MemorySize {
		return fmt.Errorf("memory.bin holds %d bytes, state says %d", len(mem), state.MemorySize)
	}

	c.Regs = state.Regs
	c.PC = state.PC
	c.SP = state.SP
	c.Z, c.N, c.C, c.V = state.Z, state.N, state.C, state.V
	c.Halted = state.Halted
	c.Steps = state.Steps
	c.Fault = nil
	if state.Fault != "" {
		c.Fault = fmt.Errorf("%s", state.Fault)
	}
	c.Memory = mem
	return nil
}

// HibernateToFile writes the hibernation archive to the given file path.
func (c *CPU) HibernateToFile(path string) error {
	data, err := c.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a hibernation archive from the given file path and
// restores the VM state.
func (c *CPU) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("missing zip entry %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
