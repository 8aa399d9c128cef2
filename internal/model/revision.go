package model

import (
	"time"

	kerrors "github.com/openstore/openstore/internal/errors"
)

// Revision is one accepted upload. Revisions are append only and the
// slice order is the chronological order.
type Revision struct {
	Revision     int       `json:"revision"`
	Version      string    `json:"version"`
	Architecture string    `json:"architecture"`
	Framework    string    `json:"framework"`
	Downloads    int64     `json:"downloads"`
	Filesize     int64     `json:"filesize"`
	DownloadURL  string    `json:"download_url"`
	Created      time.Time `json:"created"`

	DownloadSHA512  string `json:"download_sha512"`
	DownloadSHA3384 string `json:"download_sha3_384"`
}

// RevisionByVersion looks up a revision by its exact version string.
func (p *Package) RevisionByVersion(version string) (*Revision, bool) {
	for i := range p.Revisions {
		if p.Revisions[i].Version == version {
			return &p.Revisions[i], true
		}
	}
	return nil, false
}

// CurrentRevision returns the first revision, in list order, whose number
// matches Package.Revision. Without a match the latest appended one wins.
func (p *Package) CurrentRevision() (*Revision, bool) {
	if len(p.Revisions) == 0 {
		return nil, false
	}

	for i := range p.Revisions {
		if p.Revisions[i].Revision == p.Revision {
			return &p.Revisions[i], true
		}
	}
	return &p.Revisions[len(p.Revisions)-1], true
}

// CheckVersion reports whether a revision with version may be appended.
// Only the version string is compared, architecture is not.
func (p *Package) CheckVersion(version string) error {
	if _, ok := p.RevisionByVersion(version); ok {
		return kerrors.New(kerrors.KindExistingVersion, kerrors.WithDetail(version))
	}
	return nil
}

// AppendRevision numbers rev, appends it and makes it current.
func (p *Package) AppendRevision(rev Revision) (*Revision, error) {
	if err := p.CheckVersion(rev.Version); err != nil {
		return nil, err
	}

	next := 1
	for _, r := range p.Revisions {
		if r.Revision >= next {
			next = r.Revision + 1
		}
	}

	rev.Revision = next
	if rev.Created.IsZero() {
		rev.Created = time.Now().UTC()
	}

	p.Revisions = append(p.Revisions, rev)
	p.Revision = next
	p.Version = rev.Version

	if p.Downloads == nil {
		p.Downloads = map[string]int64{}
	}
	if _, ok := p.Downloads[DownloadKey(rev.Version)]; !ok {
		p.Downloads[DownloadKey(rev.Version)] = 0
	}

	return &p.Revisions[len(p.Revisions)-1], nil
}
