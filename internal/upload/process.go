package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"lo1server/internal/fileops"
	"lo1server/internal/validation"
)

// SlotView is what the upload page shows for one single-file slot.
type SlotView struct {
	Slot        Slot
	Title       string
	Description string
	File        *UploadedFile
}

// Outcome is the rendered result of a processed submission.
type Outcome struct {
	Values     map[string]string
	Violations validation.Violations
	Singles    map[string]SlotView
	Multi      map[string][]*UploadedFile
}

// Processor validates a submission against its files, then deletes rejected
// files and moves accepted ones into the image directory.
type Processor struct {
	engine   *validation.Engine
	ops      *fileops.Dispatcher
	imageDir string
	slots    []Slot
	logger   *slog.Logger
}

func NewProcessor(engine *validation.Engine, ops *fileops.Dispatcher, imageDir string, slots []Slot, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{engine: engine, ops: ops, imageDir: imageDir, slots: slots, logger: logger}
}

// Schema builds the per-request chain for sub. Presence checks on files are
// closures over sub.Files so they share the text-field rule machinery.
func (p *Processor) Schema(sub *Submission) validation.Schema {
	var schema validation.Schema
	for _, slot := range p.slots {
		files := sub.Files[slot.Name]
		hasFile := func(validation.Input) bool { return len(files) > 0 }
		noFile := func(validation.Input) bool { return len(files) == 0 }

		if !slot.Single() {
			schema = append(schema, validation.Field{
				Name: slot.Name,
				When: hasFile,
				Rules: []validation.Rule{{
					Func:    func(string) bool { return allAtLeast(files, MinFileBytes) },
					Message: "Each picture must be at least 1KB in size",
				}},
			})
			continue
		}

		title := slot.Title
		schema = append(schema,
			validation.Field{
				Name:     slot.Title,
				Sanitize: []validation.Sanitizer{validation.Trim},
				Rules: []validation.Rule{{
					When:    hasFile,
					Tag:     "required",
					Message: "Title is required when uploading a file",
				}},
			},
			validation.Field{
				Name:     slot.Description,
				Sanitize: []validation.Sanitizer{validation.Trim},
				Rules: []validation.Rule{{
					When:    noFile,
					Tag:     "len=0",
					Message: "Description requires a file to be uploaded",
				}},
			},
			validation.Field{
				Name: slot.Name,
				Rules: []validation.Rule{
					{
						When:    hasFile,
						Func:    func(string) bool { return allAtLeast(files, MinFileBytes) },
						Message: "Uploaded file must be at least 1KB in size",
					},
					{
						When:    noFile,
						Func:    func(string) bool { return !validation.NotEmpty(title)(validation.Values(sub.Form)) },
						Message: "File is required when specifying a title",
					},
				},
			},
		)
	}
	return schema
}

// Process runs validation, then applies every delete and move and waits for
// all of them. The returned error is a filesystem failure; validation
// failures are reported in Outcome.Violations.
func (p *Processor) Process(ctx context.Context, sub *Submission) (*Outcome, error) {
	res := p.engine.Run(p.Schema(sub), validation.Values(sub.Form))

	var ops []fileops.Op
	for _, slot := range p.slots {
		rejected := res.Violations.Has(slot.Name)
		for _, f := range sub.Files[slot.Name] {
			if rejected {
				ops = append(ops, fileops.Op{Type: fileops.Remove, Src: f.TemporaryPath})
				continue
			}
			f.FinalName = fmt.Sprintf("%s-%s", f.GeneratedName, f.OriginalName)
			f.FinalPath = filepath.Join(p.imageDir, f.FinalName)
			ops = append(ops, fileops.Op{Type: fileops.Move, Src: f.TemporaryPath, Dst: f.FinalPath})
		}
	}

	if err := p.ops.Run(ctx, ops); err != nil {
		return nil, err
	}
	if len(ops) > 0 {
		p.logger.Info("upload processed", "files", len(ops), "violations", len(res.Violations))
	}

	out := &Outcome{
		Values:     res.Sanitized,
		Violations: res.Violations,
		Singles:    make(map[string]SlotView),
		Multi:      make(map[string][]*UploadedFile),
	}
	for _, slot := range p.slots {
		files := sub.Files[slot.Name]
		if !slot.Single() {
			if res.Violations.Has(slot.Name) {
				out.Multi[slot.Name] = []*UploadedFile{}
			} else {
				out.Multi[slot.Name] = nonNil(files)
			}
			continue
		}
		view := SlotView{
			Slot:        slot,
			Title:       res.Sanitized[slot.Title],
			Description: res.Sanitized[slot.Description],
			File:        &UploadedFile{FieldName: slot.Name, OriginalName: NotUploaded},
		}
		if len(files) > 0 && !res.Violations.Has(slot.Name) {
			view.File = files[0]
		}
		out.Singles[slot.Name] = view
	}
	return out, nil
}

// Empty is the Outcome of a form that was never submitted or was rejected
// before processing. values are echoed trimmed.
func Empty(slots []Slot, values map[string]string, violations validation.Violations) *Outcome {
	out := &Outcome{
		Values:     map[string]string{},
		Violations: violations,
		Singles:    make(map[string]SlotView),
		Multi:      make(map[string][]*UploadedFile),
	}
	if out.Violations == nil {
		out.Violations = validation.Violations{}
	}
	for k, v := range values {
		out.Values[k] = strings.TrimSpace(v)
	}
	for _, slot := range slots {
		if !slot.Single() {
			out.Multi[slot.Name] = []*UploadedFile{}
			continue
		}
		out.Singles[slot.Name] = SlotView{
			Slot:        slot,
			Title:       out.Values[slot.Title],
			Description: out.Values[slot.Description],
			File:        &UploadedFile{FieldName: slot.Name, OriginalName: NotUploaded},
		}
	}
	return out
}

func allAtLeast(files []*UploadedFile, n int64) bool {
	for _, f := range files {
		if f.SizeBytes < n {
			return false
		}
	}
	return true
}

func nonNil(files []*UploadedFile) []*UploadedFile {
	if files == nil {
		return []*UploadedFile{}
	}
	return files
}
