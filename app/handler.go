package main

import (
	"errors"
	"net/http"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
	"github.com/sushihentaime/blogcms/internal/postservice"
	"github.com/sushihentaime/blogcms/internal/userservice"
)

type loginUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (app *application) loginUserHandler(w http.ResponseWriter, r *http.Request) {
	var input loginUserRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	token, err := app.userService.LoginUser(r.Context(), input.Username, input.Password)
	if err != nil {
		var validationErr common.ValidationError

		switch {
		case errors.Is(err, userservice.ErrAuthenticationFailure):
			app.invalidCredentialsErrorResponse(w, r)
		case errors.As(err, &validationErr):
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"token": token}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
}

func (app *application) listPublishedPostsHandler(w http.ResponseWriter, r *http.Request) {
	f, err := app.readFilters(r)
	if err != nil {
		app.postErrorResponse(w, r, err)
		return
	}

	posts, meta, err := app.postService.ListPublishedPosts(r.Context(), f)
	if err != nil {
		app.postErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"posts": posts, "metadata": meta}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showPublishedPostHandler(w http.ResponseWriter, r *http.Request) {
	post, err := app.postService.GetPublishedPost(r.Context(), app.readStringParam(r, "slug"))
	if err != nil {
		app.postErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"post": post}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	f, err := app.readFilters(r)
	if err != nil {
		app.postErrorResponse(w, r, err)
		return
	}

	posts, meta, err := app.postService.ListPosts(r.Context(), f)
	if err != nil {
		app.postErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"posts": posts, "metadata": meta}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showPostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	post, err := app.postService.GetPostByID(r.Context(), id)
	if err != nil {
		app.postErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"post": post}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) createPostHandler(w http.ResponseWriter, r *http.Request) {
	var input postservice.CreatePostRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user := app.getUserContext(r)
	input.AuthorID = user.ID

	if input.Status == events.StatusPublished && !user.HasPermission(userservice.PermissionPublishPost) {
		app.unAuthorizedErrorResponse(w, r)
		return
	}

	post, err := app.postService.CreatePost(r.Context(), &input)
	if err != nil {
		app.postErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"post": post}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	var input postservice.UpdatePostRequest

	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	if input.Status != nil && !app.getUserContext(r).HasPermission(userservice.PermissionPublishPost) {
		app.unAuthorizedErrorResponse(w, r)
		return
	}

	post, err := app.postService.UpdatePost(r.Context(), id, &input)
	if err != nil {
		app.postErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"post": post}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type bulkStatusRequest struct {
	IDs    []int         `json:"ids"`
	Status events.Status `json:"status"`
}

func (app *application) bulkStatusHandler(w http.ResponseWriter, r *http.Request) {
	var input bulkStatusRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	changed, err := app.postService.SetStatus(r.Context(), input.IDs, input.Status)
	app.bulkResponse(w, r, changed, err)
}

type bulkFeaturedRequest struct {
	IDs      []int `json:"ids"`
	Featured bool  `json:"featured"`
}

func (app *application) bulkFeaturedHandler(w http.ResponseWriter, r *http.Request) {
	var input bulkFeaturedRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	changed, err := app.postService.SetFeatured(r.Context(), input.IDs, input.Featured)
	app.bulkResponse(w, r, changed, err)
}

// bulkResponse reports a partial success with the per post errors instead
// of failing the whole request.
func (app *application) bulkResponse(w http.ResponseWriter, r *http.Request, changed int, err error) {
	var validationErr common.ValidationError
	if errors.As(err, &validationErr) {
		app.failedValidationErrorResponse(w, r, validationErr.Errors)
		return
	}

	env := envelope{"updated": changed}
	status := http.StatusOK
	if err != nil {
		app.logError(r, err)
		env["error"] = err.Error()
		status = http.StatusMultiStatus
	}

	if err := app.writeJSON(w, status, env, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	err = app.postService.DeletePost(r.Context(), id)
	if err != nil {
		app.postErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "post deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) restorePostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	post, err := app.postService.RestorePost(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, postservice.ErrDuplicateSlug):
			app.conflictResponse(w, r, "another post already uses this slug")
		default:
			app.postErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"post": post}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
