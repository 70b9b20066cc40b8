package profiler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSONL writes the full run history as line-delimited JSON, one record
// per measurement, in finalization order per layer. This is the export
// contract for external report tooling.
func (c *Collector) WriteJSONL(w *bufio.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range c.order {
		for _, rec := range c.history[name] {
			line, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record for layer %s: %w", name, err)
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// ExportJSONL writes the run history to a JSONL file at path.
func (c *Collector) ExportJSONL(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := c.WriteJSONL(bufio.NewWriter(f)); err != nil {
		return err
	}
	return f.Close()
}

// LoadJSONL rebuilds a collector from a JSONL export so planning can run
// offline against a previously profiled session. Records keep their original
// session ids; append order follows file order.
func LoadJSONL(path string) (*Collector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	c := NewCollector()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec LayerMetrics
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if _, seen := c.history[rec.LayerName]; !seen {
			c.order = append(c.order, rec.LayerName)
		}
		c.history[rec.LayerName] = append(c.history[rec.LayerName], rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c, nil
}
