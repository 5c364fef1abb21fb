package notation

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

const musicXMLMediaType = "application/vnd.recordare.musicxml+xml"

type mxlContainer struct {
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// LoadCompressedMusicXML decodes a compressed .mxl archive, locating the
// score through META-INF/container.xml and falling back to the first
// MusicXML entry outside META-INF.
func LoadCompressedMusicXML(filePath string) (*Document, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, parseError(filePath, FormatMusicXML, fmt.Errorf("open mxl archive: %w", err))
	}
	defer archive.Close()

	entry, err := scoreEntry(&archive.Reader)
	if err != nil {
		return nil, parseError(filePath, FormatMusicXML, err)
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, parseError(filePath, FormatMusicXML, fmt.Errorf("open %s: %w", entry.Name, err))
	}
	defer rc.Close()

	doc, err := decodeMusicXML(rc)
	if err != nil {
		return nil, parseError(filePath, FormatMusicXML, fmt.Errorf("%s: %w", entry.Name, err))
	}
	doc.Path = filePath
	return doc, nil
}

func scoreEntry(archive *zip.Reader) (*zip.File, error) {
	byName := make(map[string]*zip.File, len(archive.File))
	for _, f := range archive.File {
		byName[f.Name] = f
	}

	if container, ok := byName["META-INF/container.xml"]; ok {
		rc, err := container.Open()
		if err != nil {
			return nil, fmt.Errorf("open container.xml: %w", err)
		}
		var c mxlContainer
		err = xml.NewDecoder(rc).Decode(&c)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("decode container.xml: %w", err)
		}
		for _, root := range c.RootFiles {
			if root.MediaType != "" && root.MediaType != musicXMLMediaType {
				continue
			}
			if f, ok := byName[root.FullPath]; ok {
				return f, nil
			}
		}
	}

	var names []string
	for name := range byName {
		if strings.HasPrefix(name, "META-INF/") {
			continue
		}
		switch strings.ToLower(path.Ext(name)) {
		case ".xml", ".musicxml":
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("mxl archive holds no MusicXML score")
	}
	sort.Strings(names)
	return byName[names[0]], nil
}
