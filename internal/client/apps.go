package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/openstore/openstore/internal/api"
	"github.com/openstore/openstore/internal/store"
)

type AppsService service

type ListOptions struct {
	Architecture string
	Category     string
	Frameworks   []string
	Search       string
	Sort         string
	Types        []string
	Limit        int
	Skip         int
}

func (o *ListOptions) values() url.Values {
	v := url.Values{}
	if o == nil {
		return v
	}

	if o.Architecture != "" {
		v.Set("architecture", o.Architecture)
	}
	if o.Category != "" {
		v.Set("category", o.Category)
	}
	for _, f := range o.Frameworks {
		v.Add("frameworks[]", f)
	}
	if o.Search != "" {
		v.Set("search", o.Search)
	}
	if o.Sort != "" {
		v.Set("sort", o.Sort)
	}
	for _, t := range o.Types {
		v.Add("types[]", t)
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Skip > 0 {
		v.Set("skip", strconv.Itoa(o.Skip))
	}
	return v
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

// List returns a page of the public catalog.
func (s *AppsService) List(ctx context.Context, opts *ListOptions) (*api.PagedResponse, error) {
	return s.list(ctx, "api/v2/apps", opts)
}

// Manage returns a page of the packages the api key may manage.
func (s *AppsService) Manage(ctx context.Context, opts *ListOptions) (*api.PagedResponse, error) {
	return s.list(ctx, "api/v2/manage/apps", opts)
}

func (s *AppsService) list(ctx context.Context, path string, opts *ListOptions) (*api.PagedResponse, error) {
	req, err := s.client.NewGetRequest(withQuery(path, opts.values()))
	if err != nil {
		return nil, err
	}

	page := &api.PagedResponse{}
	if err := s.client.Do(ctx, req, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *AppsService) Get(ctx context.Context, id string) (*api.PackageResponse, error) {
	req, err := s.client.NewGetRequest("api/v2/apps/" + url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	pkg := &api.PackageResponse{}
	if err := s.client.Do(ctx, req, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *AppsService) Stats(ctx context.Context) (*store.Stats, error) {
	req, err := s.client.NewGetRequest("api/v2/apps/stats")
	if err != nil {
		return nil, err
	}

	stats := &store.Stats{}
	if err := s.client.Do(ctx, req, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Create submits a new package file with optional metadata fields.
func (s *AppsService) Create(ctx context.Context, path string, fields map[string]string) (*api.PackageResponse, error) {
	if path == "" {
		return nil, fmt.Errorf("a package file is required")
	}
	return s.submit(ctx, http.MethodPost, "api/v2/manage/apps", path, fields)
}

// Update uploads a new revision of id when path is set, and applies the
// metadata fields.
func (s *AppsService) Update(ctx context.Context, id, path string, fields map[string]string) (*api.PackageResponse, error) {
	return s.submit(ctx, http.MethodPut, "api/v2/manage/apps/"+url.PathEscape(id), path, fields)
}

func (s *AppsService) submit(ctx context.Context, method, urlStr, path string, fields map[string]string) (*api.PackageResponse, error) {
	var f *os.File
	if path != "" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, f, fields))
	}()
	defer pr.Close()

	req, err := s.client.newRequest(method, urlStr, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	pkg := &api.PackageResponse{}
	if err := s.client.Do(ctx, req, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func writeForm(mw *multipart.Writer, f *os.File, fields map[string]string) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	if f != nil {
		fw, err := mw.CreateFormFile("file", filepath.Base(f.Name()))
		if err != nil {
			return err
		}
		if _, err := io.Copy(fw, f); err != nil {
			return err
		}
	}

	return mw.Close()
}
