package server

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

//go:embed static/*
var staticFiles embed.FS

func StaticFilesFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to create sub filesystem: " + err.Error())
	}

	return subFS
}

// streamAsset serves an embedded asset with an ETag so browsers can revalidate cheaply.
// Outside DEV assets are cached for an hour.
func (s *Server) streamAsset(w http.ResponseWriter, r *http.Request, fileName string) error {
	data, err := fs.ReadFile(StaticFilesFS(), fileName)
	if err != nil {
		return errors.Wrapf(err, "[streamAsset] failed to open %s", fileName)
	}

	sum := sha256.Sum256(data)
	w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:8])+`"`)
	if s.env == "DEV" {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}

	// Content-Type comes from the extension; conditional and range requests are handled here too
	http.ServeContent(w, r, fileName, time.Time{}, bytes.NewReader(data))
	return nil
}
