package model

import (
	"strings"
	"time"
)

const (
	ArchitectureAll = "all"

	TypeApp     = "app"
	TypeWebapp  = "webapp"
	TypeWebappP = "webapp+"
	TypeScope   = "scope"
	TypeSnap    = "snap"
	TypeSnappy  = "snappy"
)

// Package is the catalog document. It is persisted as a whole; DocVersion
// guards concurrent writers.
type Package struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Types          []string `json:"types"`
	Maintainer     string   `json:"maintainer"`
	MaintainerName string   `json:"maintainer_name,omitempty"`
	Published      bool     `json:"published"`

	Architecture  string   `json:"architecture"`
	Architectures []string `json:"architectures"`
	Framework     []string `json:"framework"`

	Author      string   `json:"author"`
	Category    string   `json:"category"`
	Changelog   string   `json:"changelog"`
	Description string   `json:"description"`
	DonateURL   string   `json:"donate_url"`
	Keywords    []string `json:"keywords"`
	License     string   `json:"license"`
	NSFW        *bool    `json:"nsfw"`
	Screenshots []string `json:"screenshots"`
	Source      string   `json:"source"`
	SupportURL  string   `json:"support_url"`
	Tagline     string   `json:"tagline"`
	VideoURL    string   `json:"video_url"`

	Version   string           `json:"version"`
	Revision  int              `json:"revision"`
	Revisions []Revision       `json:"revisions"`
	Downloads map[string]int64 `json:"downloads"`

	Icon     string         `json:"icon"`
	Package  string         `json:"package"`
	Filesize int64          `json:"filesize"`
	Manifest map[string]any `json:"manifest,omitempty"`

	DownloadSHA512 string `json:"download_sha512"`

	PublishedDate time.Time `json:"published_date"`
	UpdatedDate   time.Time `json:"updated_date"`

	DocVersion uint64 `json:"doc_version"`
}

func NewPackage(id string) *Package {
	return &Package{
		ID:        id,
		Downloads: map[string]int64{},
	}
}

// DownloadKey is the counter key of a version in Package.Downloads. Dots are
// not allowed in document keys, hence the substitution.
func DownloadKey(version string) string {
	return "v" + strings.ReplaceAll(version, ".", "__")
}

func (p *Package) TotalDownloads() int64 {
	var total int64
	for _, n := range p.Downloads {
		total += n
	}
	return total
}

func (p *Package) HasType(t string) bool {
	for _, v := range p.Types {
		if v == t {
			return true
		}
	}
	return false
}

type SearchField struct {
	Text   string
	Weight int
}

// SearchFields returns the weighted text corpus used by full text search.
func (p *Package) SearchFields() []SearchField {
	return []SearchField{
		{Text: p.Name, Weight: 10},
		{Text: p.ID, Weight: 8},
		{Text: strings.Join(p.Keywords, " "), Weight: 5},
		{Text: p.Tagline, Weight: 3},
		{Text: p.Author, Weight: 2},
		{Text: p.Description, Weight: 1},
	}
}
