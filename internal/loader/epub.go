package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/tmc/langchaingo/schema"
)

var errMissingEntry = errors.New("missing archive entry")

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Title    string `xml:"metadata>title"`
	Creator  string `xml:"metadata>creator"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// loadEPub extracts the book's XHTML content documents in reading order and
// joins them into one document.
func loadEPub(ctx context.Context, filePath string) ([]schema.Document, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	meta := map[string]any{}
	order, pkg := epubReadingOrder(files)
	if pkg != nil {
		if pkg.Title != "" {
			meta["title"] = strings.TrimSpace(pkg.Title)
		}
		if pkg.Creator != "" {
			meta["author"] = strings.TrimSpace(pkg.Creator)
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: epub has no content documents", ErrUnsupportedFormat)
	}

	var sections []string
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := readZipFile(files[name])
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		text, err := htmlToText(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", name, err)
		}
		if text != "" {
			sections = append(sections, text)
		}
	}
	return []schema.Document{{PageContent: strings.Join(sections, "\n\n"), Metadata: meta}}, nil
}

// epubReadingOrder follows container.xml to the package document and returns
// the spine. Archives without a usable package fall back to sorted XHTML names.
func epubReadingOrder(files map[string]*zip.File) ([]string, *epubPackage) {
	var fallback []string
	for name := range files {
		switch strings.ToLower(path.Ext(name)) {
		case ".xhtml", ".html", ".htm":
			fallback = append(fallback, name)
		}
	}
	slices.Sort(fallback)

	var container epubContainer
	if err := decodeZipXML(files["META-INF/container.xml"], &container); err != nil || len(container.Rootfiles) == 0 {
		return fallback, nil
	}
	opfPath := container.Rootfiles[0].FullPath

	var pkg epubPackage
	if err := decodeZipXML(files[opfPath], &pkg); err != nil {
		return fallback, nil
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = path.Join(path.Dir(opfPath), item.Href)
	}
	var order []string
	for _, ref := range pkg.Spine {
		if name, ok := hrefs[ref.IDRef]; ok && files[name] != nil {
			order = append(order, name)
		}
	}
	if len(order) == 0 {
		return fallback, &pkg
	}
	return order, &pkg
}

func decodeZipXML(f *zip.File, v any) error {
	if f == nil {
		return errMissingEntry
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
