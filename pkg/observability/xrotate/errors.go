package xrotate

import "errors"

var (
	// ErrEmptyFilename 文件名为空
	ErrEmptyFilename = errors.New("xrotate: filename is required")

	// ErrInvalidMaxSize 单文件大小超出 1~10240 MB
	ErrInvalidMaxSize = errors.New("xrotate: invalid max size")

	// ErrInvalidMaxBackups 备份数量超出 0~1024
	ErrInvalidMaxBackups = errors.New("xrotate: invalid max backups")

	// ErrInvalidMaxAge 保留天数超出 0~3650
	ErrInvalidMaxAge = errors.New("xrotate: invalid max age")

	// ErrNoCleanupPolicy 备份数量和保留天数不能同时为 0
	ErrNoCleanupPolicy = errors.New("xrotate: max backups and max age cannot both be 0")

	// ErrClosed 轮转器已关闭
	ErrClosed = errors.New("xrotate: rotator is closed")
)
