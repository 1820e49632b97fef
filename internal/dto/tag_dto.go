package dto

// TagCreateRequest Request parameters for creating a tag
// 创建标签的请求参数
type TagCreateRequest struct {
	Name  string `json:"name" form:"name" binding:"required,max=64"`
	Color string `json:"color" form:"color" binding:"omitempty,oneof=default red orange yellow green blue purple pink gray"`
}

// TagUpdateRequest Request parameters for renaming or recolouring a tag
// 修改标签的请求参数
type TagUpdateRequest struct {
	ID    string  `json:"id" form:"id" binding:"required"`
	Name  *string `json:"name" form:"name" binding:"omitempty,min=1,max=64"`
	Color *string `json:"color" form:"color" binding:"omitempty,oneof=default red orange yellow green blue purple pink gray"`
}

// TagIDRequest 单个标签 ID
type TagIDRequest struct {
	ID string `json:"id" form:"id" uri:"id" binding:"required"`
}
