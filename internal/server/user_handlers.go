package server

import (
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/service/photo"
	"github.com/oggyb/luvo/internal/service/profile"
)

type loginRequest struct {
	InitData string `json:"init_data"`
}

// Login exchanges Telegram initData for a token.
func (s *HTTPServer) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return svcErr.InvalidArgument("invalid request body")
	}
	if req.InitData == "" {
		return svcErr.InvalidArgument("init_data is required")
	}
	tok, err := s.svc.Auth.Login(c.UserContext(), req.InitData)
	if err != nil {
		return err
	}
	return c.JSON(tok)
}

// openFiles opens uploaded parts; the returned closer releases them all.
func openFiles(headers []*multipart.FileHeader) ([]photo.File, func(), error) {
	var closers []io.Closer
	release := func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}
	files := make([]photo.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			release()
			return nil, func() {}, svcErr.InvalidArgument("unreadable upload " + fh.Filename)
		}
		closers = append(closers, f)
		files = append(files, photo.File{
			Reader:      f,
			Size:        fh.Size,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Name:        fh.Filename,
		})
	}
	return files, release, nil
}

func (s *HTTPServer) CreateProfile(c *fiber.Ctx) error {
	var in profile.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return svcErr.InvalidArgument("invalid form")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return svcErr.InvalidArgument("file is required")
	}
	files, release, err := openFiles([]*multipart.FileHeader{fh})
	if err != nil {
		return err
	}
	defer release()

	me, err := s.svc.Profiles.Create(c.UserContext(), currentUser(c), in, files[0])
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(me)
}

func (s *HTTPServer) MyProfile(c *fiber.Ctx) error {
	me, err := s.svc.Profiles.Me(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(me)
}

// UpdateProfile accepts multipart fields plus an optional "photos" list.
// Only fields present in the form are changed.
func (s *HTTPServer) UpdateProfile(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return svcErr.InvalidArgument("multipart form expected")
	}
	field := func(name string) *string {
		if v, ok := form.Value[name]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}
	in := profile.UpdateInput{
		FirstName:         field("first_name"),
		Birthdate:         field("birthdate"),
		Gender:            field("gender"),
		About:             field("about"),
		TelegramUsername:  field("telegram_username"),
		InstagramUsername: field("instagram_username"),
		Country:           field("country"),
		City:              field("city"),
		District:          field("district"),
	}

	files, release, err := openFiles(form.File["photos"])
	if err != nil {
		return err
	}
	defer release()

	me, err := s.svc.Profiles.Update(c.UserContext(), currentUser(c), in, files)
	if err != nil {
		return err
	}
	return c.JSON(me)
}

func (s *HTTPServer) PublicProfile(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	out, err := s.svc.Profiles.Public(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *HTTPServer) UploadPhoto(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return svcErr.InvalidArgument("file is required")
	}
	files, release, err := openFiles([]*multipart.FileHeader{fh})
	if err != nil {
		return err
	}
	defer release()

	p, err := s.svc.Photos.Upload(c.UserContext(), currentUser(c), files[0])
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *HTTPServer) ListPhotos(c *fiber.Ctx) error {
	photos, err := s.svc.Photos.List(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(photos)
}

func (s *HTTPServer) DeletePhoto(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.svc.Photos.Delete(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *HTTPServer) InstagramSync(c *fiber.Ctx) error {
	res, err := s.svc.Social.Sync(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}
