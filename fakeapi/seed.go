package fakeapi

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"citizen-card-cli/service"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the fixture set a server starts from. Times are relative to the
// server clock so fixtures never go stale.
type Seed struct {
	Members    []SeedMember   `yaml:"members"`
	Categories []SeedCategory `yaml:"categories"`
	Movies     []SeedMovie    `yaml:"movies"`
	Discounts  []SeedDiscount `yaml:"discounts"`
}

type SeedMember struct {
	Email      string  `yaml:"email"`
	Password   string  `yaml:"password"`
	HolderName string  `yaml:"holderName"`
	Phone      string  `yaml:"phone"`
	CardNumber string  `yaml:"cardNumber"`
	CardType   string  `yaml:"cardType"`
	Balance    float64 `yaml:"balance"`
	Verified   bool    `yaml:"verified"`
}

type SeedCategory struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedMovie struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	CategoryID  string        `yaml:"categoryId"`
	Duration    int           `yaml:"duration"`
	Rating      float64       `yaml:"rating"`
	ReleaseDate time.Time     `yaml:"releaseDate"`
	Showings    []SeedShowing `yaml:"showings"`
}

type SeedShowing struct {
	ID       string        `yaml:"id"`
	Venue    string        `yaml:"venue"`
	StartsIn time.Duration `yaml:"startsIn"`
	Rows     int           `yaml:"rows"`
	Columns  int           `yaml:"columns"`
	Price    float64       `yaml:"price"`
	Taken    []string      `yaml:"taken"`
	Blocked  []string      `yaml:"blocked"`
}

type SeedDiscount struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Type        string        `yaml:"type"`
	Category    string        `yaml:"category"`
	Value       float64       `yaml:"value"`
	MinPurchase float64       `yaml:"minPurchase"`
	ValidFrom   time.Duration `yaml:"validFrom"`
	ValidFor    time.Duration `yaml:"validFor"`
	UsageLimit  int           `yaml:"usageLimit"`
	UsageCount  int           `yaml:"usageCount"`
}

// DefaultSeed returns the built-in fixtures.
func DefaultSeed() Seed {
	seed, err := ParseSeed(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: invalid built-in seed: %v", err))
	}
	return seed
}

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

func (s Seed) validate() error {
	var errs []error
	emails := map[string]bool{}
	for i, m := range s.Members {
		if err := service.ValidateEmail(m.Email); err != nil {
			errs = append(errs, fmt.Errorf("members[%d]: %w", i, err))
		}
		if emails[m.Email] {
			errs = append(errs, fmt.Errorf("members[%d]: duplicate email %q", i, m.Email))
		}
		emails[m.Email] = true
		if err := service.ValidatePassword(m.Password); err != nil {
			errs = append(errs, fmt.Errorf("members[%d]: %w", i, err))
		}
		if err := service.ValidateCardNumber(m.CardNumber); err != nil {
			errs = append(errs, fmt.Errorf("members[%d]: %w", i, err))
		}
	}

	categories := map[string]bool{}
	for _, c := range s.Categories {
		categories[c.ID] = true
	}
	showings := map[string]bool{}
	for i, m := range s.Movies {
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("movies[%d]: id is required", i))
		}
		if m.CategoryID != "" && !categories[m.CategoryID] {
			errs = append(errs, fmt.Errorf("movies[%d]: unknown category %q", i, m.CategoryID))
		}
		for j, sh := range m.Showings {
			if showings[sh.ID] || sh.ID == "" {
				errs = append(errs, fmt.Errorf("movies[%d].showings[%d]: missing or duplicate id", i, j))
			}
			showings[sh.ID] = true
			if sh.Rows < 1 || sh.Rows > 26 || sh.Columns < 1 || sh.Columns > 99 {
				errs = append(errs, fmt.Errorf("movies[%d].showings[%d]: layout must be 1-26 rows and 1-99 columns", i, j))
			}
			for _, label := range append(append([]string{}, sh.Taken...), sh.Blocked...) {
				if err := service.ValidateSeatLabel(label); err != nil {
					errs = append(errs, fmt.Errorf("movies[%d].showings[%d]: %q: %w", i, j, label, err))
				}
			}
		}
	}
	for i, d := range s.Discounts {
		if d.ID == "" || d.ValidFor <= 0 {
			errs = append(errs, fmt.Errorf("discounts[%d]: id and a positive validFor are required", i))
		}
	}
	return errors.Join(errs...)
}
