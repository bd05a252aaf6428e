package docvault

import (
	"context"
)

// uploadService implements the UploadService interface
type uploadService struct {
	client *Client
}

func (u *uploadService) UploadFile(ctx context.Context, fileLocation string, metadata map[string]string) (*UploadedResource, error) {
	res, err := u.client.queue.Upload(ctx, fileLocation, metadata)
	captureError(ctx, "upload", err)
	return res, err
}

func (u *uploadService) Sync(ctx context.Context) (*SyncResult, error) {
	res, err := u.client.queue.Drain(ctx)
	if err != nil {
		captureError(ctx, "sync", err)
		return nil, err
	}
	return &SyncResult{
		Attempted: res.Attempted,
		Delivered: res.Delivered,
		Failed:    res.Failed,
	}, nil
}

func (u *uploadService) Pending(ctx context.Context) ([]*PendingUpload, error) {
	return u.client.queue.Pending(ctx)
}

func (u *uploadService) QueuedUploadCount() int {
	return u.client.queue.Count()
}

func (u *uploadService) WatchQueuedUploadCount() (<-chan int, func()) {
	return u.client.queue.WatchCount()
}

func (u *uploadService) ErrorMessage() string {
	return u.client.queue.ErrorMessage()
}
