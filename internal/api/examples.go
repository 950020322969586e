package api

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"lo1server/internal/httperr"
	"lo1server/internal/upload"
	"lo1server/internal/validation"
	"lo1server/internal/views"
)

var simpleCodeNames = []string{
	"Aaron", "Betty", "Carl", "Debby", "Eric", "Frank", "Garrett", "Harry", "Ivan",
	"James", "Kyle", "Larry", "Marry", "Natalia", "Oscar", "Peter", "Quinn", "Ryan",
	"Steve", "Tim", "Ursula", "Vince", "William", "Xavier", "Yashpal", "Zane",
}

type examplesIndexPage struct {
	views.Page
}

func (h *Handler) examplesIndex(c *gin.Context, rc *RequestContext) error {
	c.HTML(http.StatusOK, "examples-index", examplesIndexPage{Page: h.page(rc, "Examples Index")})
	return nil
}

type simpleCodePage struct {
	views.Page
	MyName       string
	MyPosition   string
	RandomNum    int
	RandomIsEven bool
	Names        []string
}

func (h *Handler) simpleCode(c *gin.Context, rc *RequestContext) error {
	n := rand.IntN(5)
	c.HTML(http.StatusOK, "simple-code", simpleCodePage{
		Page:         h.page(rc, "Simple Server Code examples"),
		MyName:       "Garrett Harden",
		MyPosition:   "Student",
		RandomNum:    n,
		RandomIsEven: n%2 == 0,
		Names:        simpleCodeNames,
	})
	return nil
}

type formPage struct {
	views.Page
	Method            string
	IsSubmitted       bool
	SubmittedEmail    string
	SubmittedPassword string
	SubmittedPhone    string
	SubmittedAgreed   string
	Err               map[string]string
}

func (h *Handler) formGet(c *gin.Context, rc *RequestContext) error {
	in := c.Request.URL.Query()
	h.renderForm(c, rc, "GET - Simple Form Example", "get", formGetSchema, in)
	return nil
}

func (h *Handler) formPost(c *gin.Context, rc *RequestContext) error {
	if err := c.Request.ParseForm(); err != nil {
		return httperr.BadRequest("invalid form body", err)
	}
	h.renderForm(c, rc, "POST - Simple Form Example", "post", formPostSchema, c.Request.PostForm)
	return nil
}

// renderForm validates in and echoes the sanitized values back. The form is
// always re-rendered, valid or not.
func (h *Handler) renderForm(c *gin.Context, rc *RequestContext, title, method string, schema validation.Schema, in url.Values) {
	res := h.validator.Run(schema, validation.Values(in))
	h.logger.Debug("form validated", "method", method, "violations", res.Violations.Mapped())

	c.HTML(http.StatusOK, "form-example", formPage{
		Page:              h.page(rc, title),
		Method:            method,
		IsSubmitted:       in.Get("agreed") == "yes",
		SubmittedEmail:    res.Sanitized["email"],
		SubmittedPassword: res.Sanitized["pwd"],
		SubmittedPhone:    res.Sanitized["phone"],
		SubmittedAgreed:   res.Sanitized["agreed"],
		Err:               res.Violations.Mapped(),
	})
}

type uploadPage struct {
	views.Page
	IsSubmitted bool
	Slots       []upload.SlotView
	Pictures    []*upload.UploadedFile
	Err         map[string]string
}

func (h *Handler) uploadGet(c *gin.Context, rc *RequestContext) error {
	out := upload.Empty(h.intake.Slots(), nil, nil)
	c.HTML(http.StatusOK, "upload-files", h.uploadPage(rc, "GET - Upload Form Example", false, out))
	return nil
}

// uploadPost stages the files, validates them with their text fields, then
// moves or deletes every file before anything is rendered. Intake
// rejections re-render the form with the rejection status.
func (h *Handler) uploadPost(c *gin.Context, rc *RequestContext) error {
	const title = "POST - Upload Form Example"
	ctx := c.Request.Context()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.intake.MaxRequestBytes())
	sub, err := h.intake.Receive(ctx, c.Request)
	if err != nil {
		if httperr.KindOf(err) != httperr.KindUploadRejected {
			return err
		}
		httperr.Log(h.logger, err)
		field := h.rejectedField(err)
		out := upload.Empty(h.intake.Slots(), nil, validation.Violations{field: {httperr.MessageOf(err)}})
		c.HTML(httperr.StatusOf(err), "upload-files", h.uploadPage(rc, title, true, out))
		return nil
	}
	rc.Files = sub

	out, err := h.processor.Process(ctx, rc.Files)
	if err != nil {
		return err
	}
	h.logger.Debug("upload violations", "violations", out.Violations.Mapped())

	c.HTML(http.StatusOK, "upload-files", h.uploadPage(rc, title, true, out))
	return nil
}

// rejectedField names the form field a rejection is shown under. Rejections
// without a field, or for a field the form does not render, go to "upload".
func (h *Handler) rejectedField(err error) string {
	var he *httperr.Error
	if !errors.As(err, &he) {
		return "upload"
	}
	field, _ := he.Metadata()["field"].(string)
	for _, slot := range h.intake.Slots() {
		if slot.Name == field {
			return field
		}
	}
	return "upload"
}

func (h *Handler) uploadPage(rc *RequestContext, title string, submitted bool, out *upload.Outcome) uploadPage {
	p := uploadPage{
		Page:        h.page(rc, title),
		IsSubmitted: submitted,
		Err:         out.Violations.Mapped(),
	}
	for _, slot := range h.intake.Slots() {
		if slot.Single() {
			p.Slots = append(p.Slots, out.Singles[slot.Name])
			continue
		}
		p.Pictures = append(p.Pictures, out.Multi[slot.Name]...)
	}
	if p.Pictures == nil {
		p.Pictures = []*upload.UploadedFile{}
	}
	return p
}
