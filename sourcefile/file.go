package sourcefile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Azhovan/vmopts"
	"github.com/Azhovan/vmopts/internal/tokenize"
)

// Options configures file source behavior.
type Options struct {
	// Required: if true, a missing file is an error. Default: false (no tokens).
	Required bool

	// Origin tags the loaded tokens. Default: vmopts.OriginConfigFile.
	Origin vmopts.Origin
}

type fileSource struct {
	fsys fs.FS
	path string
	name string
	opts Options
}

// New creates a source backed by an options file on disk.
func New(path string, opts Options) vmopts.Source {
	if opts.Origin == vmopts.OriginDefault {
		opts.Origin = vmopts.OriginConfigFile
	}
	return &fileSource{path: path, name: "file:" + path, opts: opts}
}

// NewResource creates a source backed by the options resource name inside
// fsys. A missing resource yields no tokens.
func NewResource(fsys fs.FS, name string) vmopts.Source {
	return &fileSource{
		fsys: fsys,
		path: name,
		name: "vm options resource",
		opts: Options{Origin: vmopts.OriginResource},
	}
}

func (f *fileSource) open() (io.ReadCloser, error) {
	if f.fsys != nil {
		return f.fsys.Open(f.path)
	}
	return os.Open(f.path)
}

// Load reads and tokenizes the file.
func (f *fileSource) Load(ctx context.Context) ([]vmopts.Token, error) {
	r, err := f.open()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !f.opts.Required {
			return nil, nil
		}
		return nil, &vmopts.ArgumentError{Kind: vmopts.KindIO, Option: f.path,
			Message: fmt.Sprintf("Could not open options file '%s'", f.path), Err: err}
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, vmopts.MaxOptionsFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read options file %s: %w", f.path, err)
	}
	if len(data) > vmopts.MaxOptionsFileSize {
		return nil, &vmopts.ArgumentError{Kind: vmopts.KindResource, Option: f.path,
			Message: fmt.Sprintf("Could not allocate read buffer for options file parse: %s", f.path), Err: vmopts.ErrNoMemory}
	}

	texts, err := tokenize.Split(f.name, string(data), tokenize.Options{Comments: f.fsys == nil})
	if err != nil {
		return nil, &vmopts.ArgumentError{Kind: vmopts.KindSyntax, Option: f.path, Message: err.Error(), Err: err}
	}
	return vmopts.Tokens(f.opts.Origin, texts...), nil
}

// Name identifies the source in diagnostics.
func (f *fileSource) Name() string {
	return f.name
}
