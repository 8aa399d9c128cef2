package submission

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/manifest"
	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/validator"
)

// Metadata holds the form fields of a submission. A nil field was not
// submitted and leaves the package untouched.
type Metadata struct {
	Maintainer  *string
	Name        *string
	Category    *string
	Description *string
	Tagline     *string
	License     *string
	Source      *string
	SupportURL  *string
	DonateURL   *string
	VideoURL    *string
	Changelog   *string
	Keywords    []string
	NSFW        *bool
	Published   *bool

	// Types overrides the manifest derived types, admins only.
	Types []string
}

type metadataURLs struct {
	Source     string `validate:"omitempty,url"`
	SupportURL string `validate:"omitempty,url"`
	DonateURL  string `validate:"omitempty,url"`
	VideoURL   string `validate:"omitempty,url"`
}

// MetadataFromForm reads the metadata fields of a submitted form.
func MetadataFromForm(form url.Values) (*Metadata, error) {
	md := &Metadata{
		Maintainer:  formString(form, "maintainer"),
		Name:        formString(form, "name"),
		Category:    formString(form, "category"),
		Description: formString(form, "description"),
		Tagline:     formString(form, "tagline"),
		License:     formString(form, "license"),
		Source:      formString(form, "source"),
		SupportURL:  formString(form, "support_url"),
		DonateURL:   formString(form, "donate_url"),
		VideoURL:    formString(form, "video_url"),
		Changelog:   formString(form, "changelog"),
	}

	// Clients send "null" for an unset maintainer.
	if md.Maintainer != nil && (*md.Maintainer == "" || *md.Maintainer == "null") {
		md.Maintainer = nil
	}

	if kw := formString(form, "keywords"); kw != nil {
		md.Keywords = splitList(*kw)
		if md.Keywords == nil {
			md.Keywords = []string{}
		}
	}

	var err error
	if md.NSFW, err = formBool(form, "nsfw"); err != nil {
		return nil, err
	}
	if md.Published, err = formBool(form, "published"); err != nil {
		return nil, err
	}

	for _, key := range []string{"types", "types[]"} {
		for _, v := range form[key] {
			md.Types = append(md.Types, splitList(v)...)
		}
	}

	urls := metadataURLs{
		Source:     deref(md.Source),
		SupportURL: deref(md.SupportURL),
		DonateURL:  deref(md.DonateURL),
		VideoURL:   deref(md.VideoURL),
	}
	if err := validator.Validate.Struct(urls); err != nil {
		return nil, kerrors.Wrap(err, kerrors.WithBadRequest(), kerrors.WithDetail("Invalid url in app metadata"))
	}

	return md, nil
}

func formString(form url.Values, key string) *string {
	if _, ok := form[key]; !ok {
		return nil
	}
	v := strings.TrimSpace(form.Get(key))
	return &v
}

func formBool(form url.Values, key string) (*bool, error) {
	s := formString(form, key)
	if s == nil || *s == "" || *s == "null" {
		return nil, nil
	}

	b, err := strconv.ParseBool(*s)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.WithBadRequest(), kerrors.WithDetail("Invalid value for "+key))
	}
	return &b, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// applyMetadata copies the submitted fields onto pkg. Only admins may hand
// a package to another maintainer or override its types.
func applyMetadata(pkg *model.Package, user *model.User, md *Metadata) {
	if pkg.Maintainer == "" {
		pkg.Maintainer = user.ID
		pkg.MaintainerName = user.Name
	}

	if md == nil {
		return
	}

	if md.Maintainer != nil && user.IsAdmin() {
		pkg.Maintainer = *md.Maintainer
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&pkg.Name, md.Name)
	set(&pkg.Category, md.Category)
	set(&pkg.Description, md.Description)
	set(&pkg.Tagline, md.Tagline)
	set(&pkg.License, md.License)
	set(&pkg.Source, md.Source)
	set(&pkg.SupportURL, md.SupportURL)
	set(&pkg.DonateURL, md.DonateURL)
	set(&pkg.VideoURL, md.VideoURL)
	set(&pkg.Changelog, md.Changelog)

	if md.Keywords != nil {
		pkg.Keywords = md.Keywords
	}

	if md.NSFW != nil {
		nsfw := *md.NSFW
		pkg.NSFW = &nsfw
	}

	if md.Published != nil {
		if *md.Published && !pkg.Published && pkg.PublishedDate.IsZero() {
			pkg.PublishedDate = time.Now().UTC()
		}
		pkg.Published = *md.Published
	}

	if len(md.Types) > 0 && user.IsAdmin() {
		pkg.Types = md.Types
	}
}

// applyManifest refreshes the manifest derived fields of pkg. Fields the
// maintainer filled in are kept.
func applyManifest(pkg *model.Package, m *manifest.Manifest, typesOverridden bool) {
	if pkg.Name == "" {
		pkg.Name = m.Title
	}
	if pkg.Name == "" {
		pkg.Name = m.Name
	}

	if pkg.Description == "" {
		pkg.Description = m.Description
	}

	if m.Maintainer != "" {
		pkg.Author = m.Maintainer
	}

	pkg.Architecture = m.Architecture
	pkg.Architectures = m.Architectures

	pkg.Framework = nil
	if m.Framework != "" {
		pkg.Framework = splitList(m.Framework)
	}

	if !typesOverridden && len(m.Types) > 0 {
		pkg.Types = m.Types
	}

	pkg.Manifest = m.Raw
}
