package api

import (
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/openstore/openstore/internal/icon"
	"github.com/openstore/openstore/internal/model"
)

// PackageResponse is the public representation of a package.
type PackageResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Author         string   `json:"author"`
	Architecture   string   `json:"architecture"`
	Architectures  []string `json:"architectures"`
	Category       string   `json:"category"`
	Changelog      string   `json:"changelog"`
	Description    string   `json:"description"`
	DonateURL      string   `json:"donate_url"`
	Download       string   `json:"download"`
	DownloadSHA512 string   `json:"download_sha512"`
	Filesize       int64    `json:"filesize"`
	Framework      []string `json:"framework"`
	Icon           string   `json:"icon"`
	Keywords       []string `json:"keywords"`
	License        string   `json:"license"`
	Maintainer     string   `json:"maintainer"`
	MaintainerName string   `json:"maintainer_name"`
	NSFW           bool     `json:"nsfw"`
	Published      bool     `json:"published"`
	Screenshots    []string `json:"screenshots"`
	Source         string   `json:"source"`
	SupportURL     string   `json:"support_url"`
	Tagline        string   `json:"tagline"`
	Types          []string `json:"types"`
	VideoURL       string   `json:"video_url"`

	Version        string             `json:"version"`
	Revision       int                `json:"revision"`
	Revisions      []RevisionResponse `json:"revisions"`
	Downloads      map[string]int64   `json:"downloads"`
	TotalDownloads int64              `json:"totalDownloads"`

	Manifest map[string]any `json:"manifest,omitempty"`

	PublishedDate time.Time `json:"published_date"`
	UpdatedDate   time.Time `json:"updated_date"`
}

type RevisionResponse struct {
	Revision     int       `json:"revision"`
	Version      string    `json:"version"`
	Architecture string    `json:"architecture"`
	Framework    string    `json:"framework"`
	Downloads    int64     `json:"downloads"`
	Filesize     int64     `json:"filesize"`
	Created      time.Time `json:"created"`

	DownloadSHA512 string `json:"download_sha512"`
}

func (h *Handler) packageView(base string, pkg *model.Package) *PackageResponse {
	v := &PackageResponse{
		ID:             pkg.ID,
		Name:           pkg.Name,
		Author:         pkg.Author,
		Architecture:   pkg.Architecture,
		Architectures:  nonNil(pkg.Architectures),
		Category:       pkg.Category,
		Changelog:      pkg.Changelog,
		Description:    pkg.Description,
		DonateURL:      pkg.DonateURL,
		DownloadSHA512: pkg.DownloadSHA512,
		Filesize:       pkg.Filesize,
		Framework:      nonNil(pkg.Framework),
		Keywords:       nonNil(pkg.Keywords),
		License:        pkg.License,
		Maintainer:     pkg.Maintainer,
		MaintainerName: pkg.MaintainerName,
		NSFW:           pkg.NSFW != nil && *pkg.NSFW,
		Published:      pkg.Published,
		Screenshots:    nonNil(pkg.Screenshots),
		Source:         pkg.Source,
		SupportURL:     pkg.SupportURL,
		Tagline:        pkg.Tagline,
		Types:          nonNil(pkg.Types),
		VideoURL:       pkg.VideoURL,
		Version:        pkg.Version,
		Revision:       pkg.Revision,
		Revisions:      make([]RevisionResponse, 0, len(pkg.Revisions)),
		Downloads:      pkg.Downloads,
		TotalDownloads: pkg.TotalDownloads(),
		Manifest:       pkg.Manifest,
		PublishedDate:  pkg.PublishedDate,
		UpdatedDate:    pkg.UpdatedDate,
	}

	if v.Downloads == nil {
		v.Downloads = map[string]int64{}
	}

	if pkg.Package != "" {
		filename := fmt.Sprintf("%s_%s_%s%s", pkg.ID, pkg.Version, pkg.Architecture, assetExt(pkg.Package))
		v.Download = fmt.Sprintf("%s/api/download/%s/%s", base, url.PathEscape(pkg.ID), url.PathEscape(filename))
	}

	if pkg.Icon != "" {
		v.Icon = fmt.Sprintf("%s/api/icon/%s/%s%s", base, url.PathEscape(pkg.Version), url.PathEscape(pkg.ID), icon.Ext(pkg.Icon))
	}

	for _, rev := range pkg.Revisions {
		v.Revisions = append(v.Revisions, RevisionResponse{
			Revision:       rev.Revision,
			Version:        rev.Version,
			Architecture:   rev.Architecture,
			Framework:      rev.Framework,
			Downloads:      rev.Downloads,
			Filesize:       rev.Filesize,
			Created:        rev.Created,
			DownloadSHA512: rev.DownloadSHA512,
		})
	}

	return v
}

func (h *Handler) packageViews(base string, pkgs []*model.Package) []*PackageResponse {
	views := make([]*PackageResponse, 0, len(pkgs))
	for _, pkg := range pkgs {
		views = append(views, h.packageView(base, pkg))
	}
	return views
}

func assetExt(asset string) string {
	p := asset
	if u, err := url.Parse(asset); err == nil {
		p = u.Path
	}
	if ext := path.Ext(p); ext != "" {
		return ext
	}
	return ".click"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
