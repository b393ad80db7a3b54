package assetrepo

import "errors"

var (
	// ErrNameRequired 表示写入或更新时未提供名称。
	ErrNameRequired = errors.New("assetrepo: name cannot be empty")

	// ErrEmptyID 表示未提供资产 ID。
	ErrEmptyID = errors.New("assetrepo: id cannot be empty")

	// ErrNilCore 表示未提供仓储核心。
	ErrNilCore = errors.New("assetrepo: core cannot be nil")
)
