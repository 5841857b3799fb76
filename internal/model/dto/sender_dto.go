package dto

// UpdateSenderRequest 修改发件人设置
type UpdateSenderRequest struct {
	Name      *string `json:"name,omitempty" binding:"omitempty,max=200"`
	IsPrivate *bool   `json:"is_private,omitempty"`
	FolderID  *int64  `json:"folder_id,omitempty"` // 0 表示移出文件夹
}

// CreateFolderRequest 新建文件夹
type CreateFolderRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Position int    `json:"position"`
}
