package loader

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"

	"github.com/tmc/langchaingo/schema"
)

func loadEmail(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	dec := new(mime.WordDecoder)
	meta := map[string]any{}
	for _, h := range []string{"Subject", "From", "To", "Date"} {
		v := msg.Header.Get(h)
		if v == "" {
			continue
		}
		if decoded, err := dec.DecodeHeader(v); err == nil {
			v = decoded
		}
		meta[strings.ToLower(h)] = v
	}

	plain, html, err := readPart(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return nil, err
	}

	body := plain
	if strings.TrimSpace(body) == "" && html != "" {
		if body, err = htmlToText(ctx, html); err != nil {
			return nil, fmt.Errorf("convert html body: %w", err)
		}
	}
	return []schema.Document{{PageContent: strings.TrimSpace(body), Metadata: meta}}, nil
}

// readPart returns the text/plain and text/html content found in a MIME
// entity, descending into multipart containers. Attachments are ignored.
func readPart(contentType, encoding string, r io.Reader) (plain, html string, err error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return plain, html, nil
			}
			if err != nil {
				return "", "", fmt.Errorf("read multipart: %w", err)
			}
			if strings.HasPrefix(part.Header.Get("Content-Disposition"), "attachment") {
				continue
			}
			p, h, err := readPart(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil {
				return "", "", err
			}
			if plain == "" {
				plain = p
			}
			if html == "" {
				html = h
			}
		}
	}

	data, err := io.ReadAll(decodeTransfer(encoding, r))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}
	switch mediaType {
	case "text/plain":
		return string(data), "", nil
	case "text/html":
		return "", string(data), nil
	}
	return "", "", nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &newlineStripper{r: r})
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

// newlineStripper drops CR and LF so wrapped base64 bodies decode.
type newlineStripper struct {
	r io.Reader
}

func (n *newlineStripper) Read(p []byte) (int, error) {
	for {
		count, err := n.r.Read(p)
		out := 0
		for _, b := range p[:count] {
			if b != '\r' && b != '\n' {
				p[out] = b
				out++
			}
		}
		if out > 0 || err != nil {
			return out, err
		}
	}
}
