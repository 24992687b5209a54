package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/sushihentaime/blogcms/internal/userservice"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthCheckHandler)

	router.HandlerFunc(http.MethodPost, "/v1/users/login", app.loginUserHandler)

	// public
	router.HandlerFunc(http.MethodGet, "/v1/posts", app.listPublishedPostsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/posts/:slug", app.showPublishedPostHandler)

	// admin
	write := func(h http.HandlerFunc) http.HandlerFunc {
		return app.requirePermission(h, userservice.PermissionWritePost)
	}
	publish := func(h http.HandlerFunc) http.HandlerFunc {
		return app.requirePermission(h, userservice.PermissionPublishPost)
	}

	router.HandlerFunc(http.MethodGet, "/v1/admin/posts", write(app.listPostsHandler))
	router.HandlerFunc(http.MethodPost, "/v1/admin/posts", write(app.createPostHandler))
	router.HandlerFunc(http.MethodGet, "/v1/admin/posts/:id", write(app.showPostHandler))
	router.HandlerFunc(http.MethodPut, "/v1/admin/posts/:id", write(app.updatePostHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/admin/posts/:id", write(app.deletePostHandler))
	router.HandlerFunc(http.MethodPut, "/v1/admin/posts/:id/restore", write(app.restorePostHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/admin/posts/bulk/status", publish(app.bulkStatusHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/admin/posts/bulk/featured", write(app.bulkFeaturedHandler))

	return app.recoverPanic(app.enableCORS(app.rateLimit(app.logRequest(app.authenticate(router)))))
}
