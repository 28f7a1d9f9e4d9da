package signing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type checksum struct {
	name string
	sum  string
}

// Checksums accumulates sha256sum(1)-compatible lines in insertion order.
type Checksums struct {
	entries []checksum
	index   map[string]int
}

// Sum returns the hex SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Add records data under name. Adding a name twice replaces its sum in place.
func (c *Checksums) Add(name string, data []byte) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	entry := checksum{name: name, sum: Sum(data)}
	if i, ok := c.index[name]; ok {
		c.entries[i] = entry
		return
	}
	c.index[name] = len(c.entries)
	c.entries = append(c.entries, entry)
}

// Len returns the number of recorded files.
func (c *Checksums) Len() int {
	return len(c.entries)
}

// Bytes renders the file as "<sum>  <name>" lines.
func (c *Checksums) Bytes() []byte {
	var buf bytes.Buffer
	for _, e := range c.entries {
		fmt.Fprintf(&buf, "%s  %s\n", e.sum, e.name)
	}
	return buf.Bytes()
}
