package service

import (
	"context"
	"fmt"
	"sync"
)

// fakeBlobStore 内存对象存储，替代 OSS 客户端
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	seq     int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) PutShared(contentHash string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := "newsletters/shared/" + contentHash + ".html"
	f.objects[key] = data
	return key, nil
}

func (f *fakeBlobStore) PutPrivate(userID int64, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	key := fmt.Sprintf("newsletters/private/%d/%d.html", userID, f.seq)
	f.objects[key] = data
	return key, nil
}

func (f *fakeBlobStore) Get(objectKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", objectKey)
	}
	return data, nil
}

func (f *fakeBlobStore) GetSignedURL(objectKey string, expireSeconds ...int64) (string, error) {
	return "https://oss.test/" + objectKey + "?signed=1", nil
}

func (f *fakeBlobStore) Delete(objectKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectKey)
	f.deleted = append(f.deleted, objectKey)
	return nil
}

// fakeAIProvider 可编程的摘要提供方
type fakeAIProvider struct {
	configured bool
	result     string
	err        error
	calls      int
}

func (f *fakeAIProvider) Configured() bool {
	return f.configured
}

func (f *fakeAIProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}
