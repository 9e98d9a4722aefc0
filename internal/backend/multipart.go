package backend

import (
	"bytes"
	"io"
	"mime/multipart"
)

// File is an upload part.
type File struct {
	Name    string // file name sent to the backend
	Content io.Reader
}

type formField struct {
	name  string
	value string
	file  *File
}

// multipartForm keeps parts in insertion order.
type multipartForm struct {
	fields []formField
}

func (f *multipartForm) add(name, value string) *multipartForm {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

func (f *multipartForm) addFile(name string, file *File) *multipartForm {
	if file != nil && file.Content != nil {
		f.fields = append(f.fields, formField{name: name, file: file})
	}
	return f
}

func (f *multipartForm) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, fld := range f.fields {
		if fld.file == nil {
			if err := w.WriteField(fld.name, fld.value); err != nil {
				return nil, "", err
			}
			continue
		}
		name := fld.file.Name
		if name == "" {
			name = fld.name
		}
		part, err := w.CreateFormFile(fld.name, name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, fld.file.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
