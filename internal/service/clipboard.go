package service

import (
	"context"

	"github.com/noah-isme/educlass-api/internal/storage"
)

const clipboardKey = "clipboard"

// Clipboard receives text copied by a device.
type Clipboard interface {
	Write(ctx context.Context, deviceID, text string) error
}

type storageClipboard struct {
	kv storage.KeyValue
}

// NewStorageClipboard keeps the last copied text per device in kv.
func NewStorageClipboard(kv storage.KeyValue) Clipboard {
	return &storageClipboard{kv: kv}
}

func (c *storageClipboard) Write(ctx context.Context, deviceID, text string) error {
	return storage.WithPrefix(c.kv, deviceID).Set(ctx, clipboardKey, text)
}
