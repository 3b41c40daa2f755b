package extension

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DescriptorFile is the descriptor name inside an extension folder.
const DescriptorFile = "extension.xml"

// Descriptor identifies the extension to the broker.
type Descriptor struct {
	XMLName       xml.Name `xml:"hivemq-extension"`
	ID            string   `xml:"id"`
	Name          string   `xml:"name"`
	Version       string   `xml:"version"`
	Author        string   `xml:"author"`
	Priority      int      `xml:"priority"`
	StartPriority int      `xml:"start-priority"`
}

// DefaultDescriptor describes this extension when no extension.xml is
// shipped.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		ID:            "hivemq-influxdb-extension",
		Name:          "InfluxDB Monitoring Extension",
		Version:       "dev",
		Author:        "HiveMQ",
		Priority:      1000,
		StartPriority: 1000,
	}
}

// ReadDescriptor parses home/extension.xml. Missing elements keep their
// default values; a missing file yields DefaultDescriptor.
func ReadDescriptor(home string) (Descriptor, error) {
	d := DefaultDescriptor()
	data, err := os.ReadFile(filepath.Join(home, DescriptorFile))
	if errors.Is(err, fs.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return d, err
	}
	if err := xml.Unmarshal(data, &d); err != nil {
		return DefaultDescriptor(), fmt.Errorf("parse %s: %w", DescriptorFile, err)
	}
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return d, fmt.Errorf("%s: id must not be empty", DescriptorFile)
	}
	return d, nil
}

// WriteDescriptor writes d as home/extension.xml with mode FileMode.
func WriteDescriptor(home string, d Descriptor) error {
	out, err := xml.MarshalIndent(d, "", "    ")
	if err != nil {
		return err
	}
	out = append([]byte(xml.Header), out...)
	out = append(out, '\n')
	return os.WriteFile(filepath.Join(home, DescriptorFile), out, FileMode)
}
