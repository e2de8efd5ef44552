package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/craquetonbudget/bonsplans/internal/storage"
)

const fakeCDN = "https://cdn.test/bonsplans/"

type fakeFiles struct {
	mu             sync.Mutex
	uploads        map[string]string
	removed        [][]string
	uploadFailures int
	removeErr      error
	uploadCalls    int
	removeCalls    int
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{uploads: map[string]string{}}
}

func (f *fakeFiles) Upload(_ context.Context, path string, data io.Reader, _ storage.UploadOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	if f.uploadFailures > 0 {
		f.uploadFailures--
		return "", errors.New("upload timeout")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.uploads[path] = string(b)
	return fakeCDN + path, nil
}

func (f *fakeFiles) Remove(_ context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, paths)
	for _, p := range paths {
		delete(f.uploads, p)
	}
	return nil
}

func (f *fakeFiles) Managed(u string) bool {
	_, ok := f.PathFromURL(u)
	return ok
}

func (f *fakeFiles) PathFromURL(u string) (string, bool) {
	if !strings.HasPrefix(u, fakeCDN) || len(u) == len(fakeCDN) {
		return "", false
	}
	return strings.TrimPrefix(u, fakeCDN), true
}
