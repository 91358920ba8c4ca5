package arvos_test

import (
	"testing/fstest"
	"time"

	"impractical.co/arvos"
)

// templates builds an in-memory template directory from file contents.
func templates(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, contents := range files {
		fsys[name] = &fstest.MapFile{
			Data:    []byte(contents),
			Mode:    0444,
			ModTime: time.Now(),
		}
	}
	return fsys
}

// valuesFrom builds a Values store holding entries.
func valuesFrom(entries map[string]string) *arvos.Values {
	values := arvos.NewValues()
	for k, v := range entries {
		values.Set(k, v)
	}
	return values
}
