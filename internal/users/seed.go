package users

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Email       string   `yaml:"email"`
	Password    string   `yaml:"password"`
	Name        string   `yaml:"name"`
	Preferences []string `yaml:"preferences"`
}

// LoadSeed registers the users listed in a YAML file:
//
//	users:
//	  - email: ada@example.com
//	    password: secret1
//	    name: Ada
//	    preferences: [technology, science]
func (d *Directory) LoadSeed(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return d.ReadSeed(f)
}

// ReadSeed is LoadSeed for an already open reader. Users whose email is
// already registered are skipped.
func (d *Directory) ReadSeed(r io.Reader) (int, error) {
	var sf seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("parsing seed file: %w", err)
	}

	n := 0
	for i, su := range sf.Users {
		_, err := d.Register(su.Email, su.Password, su.Name, su.Preferences)
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			continue
		case err != nil:
			return n, fmt.Errorf("seed user %d (%s): %w", i, su.Email, err)
		}
		n++
	}
	return n, nil
}
