package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"lo1server/internal/httperr"
)

const (
	maxFieldBytes = 1 * MiB
	maxFields     = 64
	sniffBytes    = 3072
)

// Intake streams multipart requests into the staging directory, enforcing
// the per-slot count, size and MIME constraints.
type Intake struct {
	fs         vfs.FileSystem
	stagingDir string
	slots      []Slot
	byName     map[string]Slot
	logger     *slog.Logger
}

// NewIntake checks that stagingDir exists and returns an Intake for slots.
func NewIntake(fs vfs.FileSystem, stagingDir string, slots []Slot, logger *slog.Logger) (*Intake, error) {
	st, err := fs.Stat(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("upload staging dir %s: %w", stagingDir, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("upload staging dir %s is not a directory", stagingDir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]Slot, len(slots))
	for _, s := range slots {
		byName[s.Name] = s
	}
	return &Intake{fs: fs, stagingDir: stagingDir, slots: slots, byName: byName, logger: logger}, nil
}

// Slots returns the configured slot table.
func (in *Intake) Slots() []Slot {
	return in.slots
}

// MaxRequestBytes bounds the whole request body: every slot full plus the
// text fields.
func (in *Intake) MaxRequestBytes() int64 {
	total := int64(maxFieldBytes)
	for _, s := range in.slots {
		total += s.MaxSizeBytes * int64(s.MaxCount)
	}
	// multipart framing overhead
	return total + 64*1024
}

// Receive reads r. Non-multipart bodies are parsed as an ordinary form with
// no files. On any rejection every file staged so far is removed before the
// error is returned.
func (in *Intake) Receive(ctx context.Context, r *http.Request) (*Submission, error) {
	sub := &Submission{Files: Files{}, Form: url.Values{}}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return nil, httperr.BadRequest("invalid form body", err)
		}
		sub.Form = r.PostForm
		return sub, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, httperr.BadRequest("invalid multipart form", err)
	}

	fail := func(err error) (*Submission, error) {
		in.Discard(sub.Files)
		return nil, err
	}

	fields := 0
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if isTooLarge(err) {
				return fail(httperr.Rejected(http.StatusRequestEntityTooLarge, "", "Request too large"))
			}
			return fail(httperr.BadRequest("invalid multipart form", err))
		}

		name := part.FormName()
		if part.FileName() == "" {
			if _, isSlot := in.byName[name]; isSlot {
				// empty file input
				part.Close()
				continue
			}
			fields++
			if fields > maxFields {
				part.Close()
				return fail(httperr.BadRequest("too many form fields", nil))
			}
			value, err := readField(part)
			part.Close()
			if err != nil {
				return fail(err)
			}
			sub.Form.Add(name, value)
			continue
		}

		f, err := in.stage(part, len(sub.Files[name]))
		part.Close()
		if err != nil {
			return fail(err)
		}
		sub.Files[name] = append(sub.Files[name], f)
		in.logger.Debug("file staged",
			"field", f.FieldName, "original_name", f.OriginalName, "size", f.SizeBytes,
			"mime", f.MimeType, "detected", f.DetectedType, "path", f.TemporaryPath)
	}
	return sub, nil
}

// Discard removes staged files. Failures are only logged since the request
// is answered either way.
func (in *Intake) Discard(files Files) {
	for _, f := range files.All(in.slots) {
		in.removeStaged(f.TemporaryPath)
	}
}

// stage writes one file part into the staging directory under a random
// name. The client supplied content type decides admission; the sniffed type
// is recorded alongside.
func (in *Intake) stage(part *multipart.Part, already int) (*UploadedFile, error) {
	field := part.FormName()
	slot, ok := in.byName[field]
	if !ok {
		return nil, httperr.Rejected(http.StatusBadRequest, field, "Unexpected field")
	}
	if already >= slot.MaxCount {
		return nil, httperr.Rejected(http.StatusBadRequest, field, fmt.Sprintf("Too many files (max %d)", slot.MaxCount))
	}
	declared := part.Header.Get("Content-Type")
	if !slot.allows(declared) {
		return nil, httperr.Rejected(http.StatusUnsupportedMediaType, field, "Only images are allowed")
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(part, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		if isTooLarge(err) {
			return nil, httperr.Rejected(http.StatusRequestEntityTooLarge, field, "File too large")
		}
		return nil, httperr.BadRequest("invalid multipart form", err)
	}
	head = head[:n]

	name := generatedName()
	dst := filepath.Join(in.stagingDir, name)
	out, err := in.fs.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, httperr.Filesystem("create", dst, err)
	}

	body := io.MultiReader(bytes.NewReader(head), part)
	written, copyErr := io.Copy(out, io.LimitReader(body, slot.MaxSizeBytes+1))
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		in.removeStaged(dst)
		if isTooLarge(copyErr) {
			return nil, httperr.Rejected(http.StatusRequestEntityTooLarge, field, "File too large")
		}
		return nil, httperr.BadRequest("invalid multipart form", copyErr)
	case written > slot.MaxSizeBytes:
		in.removeStaged(dst)
		return nil, httperr.Rejected(http.StatusRequestEntityTooLarge, field, "File too large")
	case closeErr != nil:
		in.removeStaged(dst)
		return nil, httperr.Filesystem("write", dst, closeErr)
	}

	return &UploadedFile{
		FieldName:     field,
		TemporaryPath: dst,
		GeneratedName: name,
		OriginalName:  safeName(part.FileName()),
		SizeBytes:     written,
		MimeType:      declared,
		DetectedType:  mimetype.Detect(head).String(),
	}, nil
}

func (in *Intake) removeStaged(p string) {
	if err := in.fs.Remove(p); err != nil && !vfs.IsErrNotExist(err) {
		httperr.Log(in.logger, httperr.Filesystem("delete", p, err))
	}
}

func readField(r io.Reader) (string, error) {
	buf, err := io.ReadAll(io.LimitReader(r, maxFieldBytes+1))
	if err != nil {
		if isTooLarge(err) {
			return "", httperr.Rejected(http.StatusRequestEntityTooLarge, "", "Request too large")
		}
		return "", httperr.BadRequest("invalid multipart form", err)
	}
	if len(buf) > maxFieldBytes {
		return "", httperr.Rejected(http.StatusRequestEntityTooLarge, "", "Field value too long")
	}
	return string(buf), nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// safeName strips any directory part a client may have put in a filename.
func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "." || name == "/" || name == "" || name == ".." {
		return "upload"
	}
	return name
}

func generatedName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
