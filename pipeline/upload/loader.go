package upload

import (
	"context"
	"fmt"
	"os"
)

// File é um arquivo a enviar. Size define o peso no gate file_load.
type File struct {
	Path string
	Size int64
}

// Loader lê e codifica o conteúdo de um arquivo.
type Loader interface {
	Load(ctx context.Context, f File) ([]byte, error)
}

// FSLoader lê arquivos do disco local sem codificação.
type FSLoader struct{}

func (FSLoader) Load(ctx context.Context, f File) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", f.Path, err)
	}
	return data, nil
}

// Stat monta a lista de File (com tamanho) a partir de caminhos locais.
func Stat(paths ...string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if fi.IsDir() {
			return nil, fmt.Errorf("stat %s: is a directory", p)
		}
		files = append(files, File{Path: p, Size: fi.Size()})
	}
	return files, nil
}
