package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ByLCY/dmsheet/labels"
)

const pngDataURIPrefix = "data:image/png;base64,"

// UploadResponse is the JSON body of a successful upload.
type UploadResponse struct {
	ImgBase64    string `json:"img_base64"` // data URI
	PDFBase64    string `json:"pdf_b64"`
	BatchID      string `json:"batch_id"`
	Pages        int    `json:"pages"`
	Placeholders int    `json:"placeholders"`
}

// errBadRequest 标记表单解析阶段的调用方错误。
var errBadRequest = errors.New("bad request")

// handleUpload 生成预览与文档并以 JSON 返回。
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	batchID := uuid.NewString()
	req, err := s.parseUpload(w, r, batchID)
	if err != nil {
		s.writeFailure(w, r, batchID, err)
		return
	}
	out, err := s.gen.Generate(req)
	if err != nil {
		s.writeFailure(w, r, batchID, err)
		return
	}
	if out.Stats.AllPlaceholders() {
		s.logger.Warn("no payload could be encoded", zap.String("batch", batchID))
	}
	s.logger.Info("upload processed",
		zap.String("batch", batchID),
		zap.String("ip", clientIP(r)),
		zap.Int("payloads", out.Stats.Payloads),
		zap.Int("pages", out.Stats.Pages),
		zap.Int("placeholders", out.Stats.Placeholders),
		zap.Duration("took", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, UploadResponse{
		ImgBase64:    pngDataURIPrefix + base64.StdEncoding.EncodeToString(out.Preview),
		PDFBase64:    base64.StdEncoding.EncodeToString(out.PDF),
		BatchID:      batchID,
		Pages:        out.Stats.Pages,
		Placeholders: out.Stats.Placeholders,
	})
}

// handleDocument 接收同样的表单，直接返回 PDF。
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	batchID := uuid.NewString()
	req, err := s.parseUpload(w, r, batchID)
	if err != nil {
		s.writeFailure(w, r, batchID, err)
		return
	}
	pdf, err := s.gen.GenerateDocument(req)
	if err != nil {
		s.writeFailure(w, r, batchID, err)
		return
	}
	s.logger.Info("document served", zap.String("batch", batchID), zap.String("ip", clientIP(r)), zap.Int("bytes", len(pdf)))
	writePDF(w, "labels-"+batchID+".pdf", pdf)
}

// parseUpload 读取 multipart 的 file 字段或表单 serials 字段，以及 size 与 dpi。
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, batchID string) (labels.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	var err error
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(s.maxUpload)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return labels.Request{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	text, err := uploadedText(r)
	if err != nil {
		return labels.Request{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	req := labels.Request{
		Payloads: labels.SplitLines(text),
		Size:     r.FormValue("size"),
		Subject:  batchID,
	}
	if v := strings.TrimSpace(r.FormValue("dpi")); v != "" {
		dpi, err := strconv.Atoi(v)
		if err != nil {
			return labels.Request{}, fmt.Errorf("%w: dpi %q is not an integer", errBadRequest, v)
		}
		req.DPI = dpi
	}
	return req, nil
}

func uploadedText(r *http.Request) (string, error) {
	file, _, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return r.FormValue("serials"), nil
	case err != nil:
		return "", err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.New("uploaded file is not UTF-8 text")
	}
	return string(data), nil
}

// writeFailure 将错误映射为状态码：调用方错误 400，超出上传上限 413，其余 500。
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, batchID string, err error) {
	var tooLarge *http.MaxBytesError
	status, msg := http.StatusInternalServerError, "internal server error"
	switch {
	case errors.As(err, &tooLarge):
		status, msg = http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, labels.ErrInput), errors.Is(err, errBadRequest):
		status, msg = http.StatusBadRequest, err.Error()
	}
	fields := []zap.Field{zap.String("batch", batchID), zap.String("ip", clientIP(r)), zap.Int("status", status), zap.Error(err)}
	if status == http.StatusInternalServerError {
		s.logger.Error("upload failed", fields...)
	} else {
		s.logger.Info("upload rejected", fields...)
	}
	writeError(w, status, msg)
}
