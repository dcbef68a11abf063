package interp

import (
	"io"
	"os"

	"github.com/lililuanluan/weazer/label"
	"github.com/lililuanluan/weazer/predicate"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// The file form of a program
type programFile struct {
	Name    string `yaml:"name"`
	Unroll  int    `yaml:"unroll"`
	Globals []struct {
		Name string `yaml:"name"`
		Init int64  `yaml:"init"`
	} `yaml:"globals"`
	Funcs []struct {
		Name string   `yaml:"name"`
		Body []string `yaml:"body"`
	} `yaml:"funcs"`
	Forbidden []string `yaml:"forbidden"`
	Always    []string `yaml:"always"`
	Exists    []string `yaml:"exists"`
}

// Read a program from its YAML form:
//
//	name: mp
//	globals:
//	  - {name: x}
//	  - {name: flag}
//	funcs:
//	  - name: main
//	    body: ["spawn r0, writer", "await.acq r1, flag == 1", "load r2, x"]
//	  - name: writer
//	    body: ["store x, 1", "store.rel flag, 1"]
//	forbidden: ["0:r2 == 0"]
func Load(r io.Reader) (*Program, error) {
	var f programFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "interp: decoding program")
	}
	p := NewProgram(f.Name)
	if f.Unroll > 0 {
		p.WithUnroll(f.Unroll)
	}
	for _, g := range f.Globals {
		p.Global(g.Name, label.SVal(g.Init))
	}
	for _, fn := range f.Funcs {
		p.Func(fn.Name, fn.Body...)
	}
	kinds := []struct {
		conds []string
		make  func(string, predicate.Condition) predicate.Predicate
	}{
		{f.Forbidden, predicate.Forbidden},
		{f.Always, predicate.Always},
		{f.Exists, predicate.Exists},
	}
	for _, k := range kinds {
		for _, s := range k.conds {
			cond, err := predicate.Parse(s)
			if err != nil {
				return nil, errors.Wrapf(err, "interp: program %q", f.Name)
			}
			p.Expect(k.make(s, cond))
		}
	}
	return p.Build()
}

// Read a program from a YAML file
func LoadFile(path string) (*Program, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "interp")
	}
	defer file.Close()
	p, err := Load(file)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return p, nil
}
