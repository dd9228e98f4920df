package upload

import "github.com/gin-gonic/gin"

// RegisterRoutes registers upload routes under the protected group. admin
// guards the target listing.
func RegisterRoutes(r *gin.RouterGroup, h *Handler, admin gin.HandlerFunc) {
	uploads := r.Group("/uploads", ErrorHandler())
	{
		uploads.POST("/recipes/cover", h.Upload(TargetRecipeCover)...)
		uploads.POST("/recipes/gallery", h.Upload(TargetRecipeGallery)...)
		uploads.POST("/profile", h.Upload(TargetProfileImage)...)
		uploads.POST("/files", h.Upload(TargetMultipleFiles)...)

		uploads.GET("", h.ListMy)
		uploads.GET("/targets", admin, h.Targets)
		uploads.GET("/:id", h.GetByID)
		uploads.DELETE("/:id", h.Delete)
	}
}
