package service

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Contact is where a participant receives email
type Contact struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// ContactDirectory resolves participant ids to contacts. Accounts live
// outside this service, so the host supplies the directory.
type ContactDirectory interface {
	Lookup(participantID string) (Contact, bool)
}

// StaticContacts is a fixed participant id → contact table
type StaticContacts map[string]Contact

// Lookup implements ContactDirectory
func (c StaticContacts) Lookup(participantID string) (Contact, bool) {
	contact, ok := c[participantID]
	return contact, ok
}

// LoadContacts reads a YAML document of the form
//
//	contacts:
//	  slp-1: {email: ana@clinic.example, name: Ana}
//
// An empty path yields an empty directory.
func LoadContacts(path string) (StaticContacts, error) {
	if path == "" {
		return StaticContacts{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts file %s: %w", path, err)
	}

	var doc struct {
		Contacts StaticContacts `yaml:"contacts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse contacts: %w", err)
	}
	if doc.Contacts == nil {
		doc.Contacts = StaticContacts{}
	}
	for id, c := range doc.Contacts {
		c.Email = strings.TrimSpace(c.Email)
		if !emailRegex.MatchString(c.Email) {
			return nil, fmt.Errorf("contact %s: invalid email %q", id, c.Email)
		}
		doc.Contacts[id] = c
	}
	return doc.Contacts, nil
}
