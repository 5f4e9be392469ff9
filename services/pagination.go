package services

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Pagination 分页参数，列表类接口共用
type Pagination struct {
	Page  int
	Limit int
}

// NewPagination 创建已规范化的分页参数
func NewPagination(page, limit int) Pagination {
	p := Pagination{Page: page, Limit: limit}
	p.Normalize()
	return p
}

// Normalize 填充默认分页参数
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
}

// Offset 当前页第一条记录的偏移量
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}
