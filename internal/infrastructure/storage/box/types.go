package box

import (
	"strings"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// RootFolderID is the id Box gives the "All Files" folder of every account.
const RootFolderID = "0"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type miniItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type user struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login"`
}

type file struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Extension   string    `json:"extension"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   *user     `json:"created_by"`
	Parent      *miniItem `json:"parent"`
}

type folder struct {
	Type   string    `json:"type"`
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Parent *miniItem `json:"parent"`
}

func (f file) toDescriptor() domain.FileDescriptor {
	out := domain.FileDescriptor{
		ID:          f.ID,
		Name:        f.Name,
		Extension:   strings.TrimSpace(f.Extension),
		Description: f.Description,
		CreatedAt:   f.CreatedAt,
	}
	if f.CreatedBy != nil {
		out.CreatedBy = domain.Identity{ID: f.CreatedBy.ID, Name: f.CreatedBy.Name, Login: f.CreatedBy.Login}
	}
	if f.Parent != nil {
		out.ParentFolderID = f.Parent.ID
	}
	return out
}

const (
	fileFields   = "id,type,name,extension,description,created_at,created_by,parent"
	folderFields = "id,type,name,parent"
)
