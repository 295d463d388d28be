package specbind

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
)

// specResource serves a pre-serialized document verbatim.
func specResource(body []byte) HandlerFunc {
	return func(context.Context, *Request) (Result, error) {
		return &Response{
			StatusCode: http.StatusOK,
			Mimetype:   "application/json",
			Body:       body,
		}, nil
	}
}

func notFound(context.Context, *Request) (Result, error) {
	return nil, HTTPStatusError(http.StatusNotFound)
}

// consoleUI serves the documentation explorer: an HTML shell rendered once at
// mount time plus static assets from a directory.
type consoleUI struct {
	home   []byte
	uiPath string
	assets fs.FS // nil when assets come from the CDN
}

type consoleData struct {
	Title     string
	SpecURL   string
	AssetBase string
}

const swaggerUICDN = "https://unpkg.com/swagger-ui-dist@5"

func newConsoleUI(title, basePath string, opts Options, version int) (*consoleUI, error) {
	uiPath := JoinPath(basePath, opts.ConsoleUIPath)
	data := consoleData{
		Title:     title,
		SpecURL:   JoinPath(basePath, specFileName(version)),
		AssetBase: swaggerUICDN,
	}
	if data.Title == "" {
		data.Title = "API"
	}

	ui := &consoleUI{uiPath: trimSlash(uiPath)}
	if opts.ConsoleUIFromDir != "" {
		info, err := os.Stat(opts.ConsoleUIFromDir)
		if err != nil {
			return nil, fmt.Errorf("console ui directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("console ui directory: %s is not a directory", opts.ConsoleUIFromDir)
		}
		ui.assets = os.DirFS(opts.ConsoleUIFromDir)
		data.AssetBase = ui.uiPath
	}

	var buf bytes.Buffer
	if err := consoleTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render console ui: %w", err)
	}
	ui.home = buf.Bytes()
	return ui, nil
}

func (u *consoleUI) redirect(context.Context, *Request) (Result, error) {
	return &Response{
		StatusCode: http.StatusMovedPermanently,
		Headers:    http.Header{"Location": {u.uiPath + "/"}},
	}, nil
}

func (u *consoleUI) serve(_ context.Context, req *Request) (Result, error) {
	name := req.PathParams["filename"]
	if name == "" || name == "index.html" {
		return &Response{
			StatusCode: http.StatusOK,
			Mimetype:   "text/html; charset=utf-8",
			Body:       u.home,
		}, nil
	}

	if u.assets == nil || !fs.ValidPath(name) {
		return nil, HTTPStatusError(http.StatusNotFound)
	}
	data, err := fs.ReadFile(u.assets, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, HTTPStatusError(http.StatusNotFound)
		}
		return nil, err
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &Response{
		StatusCode: http.StatusOK,
		Mimetype:   contentType,
		Body:       data,
	}, nil
}

var consoleTemplate = template.Must(template.New("console").Parse(consoleHTML))

const consoleHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="{{.AssetBase}}/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui" data-spec-url="{{.SpecURL}}"></div>
  <script src="{{.AssetBase}}/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function () {
      var el = document.getElementById("swagger-ui");
      window.ui = SwaggerUIBundle({
        url: el.dataset.specUrl,
        dom_id: "#swagger-ui",
        deepLinking: true
      });
    };
  </script>
</body>
</html>`
