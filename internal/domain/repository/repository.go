// Package repository 定义故事、剧集、角色与 provider 的数据访问接口
package repository

import (
	"context"
	"errors"
)

// ErrNotFound 按主键更新时目标行不存在
var ErrNotFound = errors.New("record not found")

// 列表接口的分页约束
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TxKey 上下文中保存事务句柄的键
type TxKey struct{}

// Transactor 分叉、provider 角色切换等多表写入在同一事务内完成
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Pagination 页码从 1 开始
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination 规范化分页参数
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

func (p Pagination) Limit() int { return p.PageSize }

// PagedResult 一页数据与总数
type PagedResult[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// NewPagedResult 包装数据库已分页的结果
func NewPagedResult[T any](items []T, total int64, pagination Pagination) *PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PagedResult[T]{
		Items:    items,
		Total:    total,
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	}
}

// SlicePage 对已排序的完整列表取一页，越界时返回空页
func SlicePage[T any](all []T, pagination Pagination) *PagedResult[T] {
	start := min(pagination.Offset(), len(all))
	end := min(start+pagination.Limit(), len(all))
	return NewPagedResult(all[start:end], int64(len(all)), pagination)
}
