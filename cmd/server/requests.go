package main

import "fmt"

type validator interface {
	validate() error
}

// Pointer fields distinguish an absent field from an empty string.

type createFileRequest struct {
	FilePath *string `json:"filePath"`
	Content  *string `json:"content"`
}

func (r *createFileRequest) validate() error {
	if r.FilePath == nil || *r.FilePath == "" {
		return fmt.Errorf("%w: filePath is required", errBadRequest)
	}
	return nil
}

type saveFileRequest struct {
	FilePath *string `json:"filePath"`
	Content  *string `json:"content"`
}

func (r *saveFileRequest) validate() error {
	if r.FilePath == nil || *r.FilePath == "" {
		return fmt.Errorf("%w: filePath is required", errBadRequest)
	}
	if r.Content == nil {
		return fmt.Errorf("%w: content is required", errBadRequest)
	}
	return nil
}

type deleteFileRequest struct {
	FilePath *string `json:"filePath"`
}

func (r *deleteFileRequest) validate() error {
	if r.FilePath == nil || *r.FilePath == "" {
		return fmt.Errorf("%w: filePath is required", errBadRequest)
	}
	return nil
}

type uploadFileRequest struct {
	Filename *string `json:"filename"`
	Content  *string `json:"content"`
}

func (r *uploadFileRequest) validate() error {
	if r.Filename == nil || *r.Filename == "" {
		return fmt.Errorf("%w: filename is required", errBadRequest)
	}
	if r.Content == nil {
		return fmt.Errorf("%w: content is required", errBadRequest)
	}
	return nil
}
