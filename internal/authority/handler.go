package authority

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pawhub/feedsync/internal/domain"
	pkglog "github.com/pawhub/feedsync/pkg/log"
	"github.com/pawhub/feedsync/pkg/response"
)

// Handler serves the REST contract the sync layer consumes. It is the
// stand-in for the production backend during local development and
// integration tests.
type Handler struct {
	db     *gorm.DB
	tokens *TokenManager
}

// NewHandler creates a new HTTP handler.
func NewHandler(db *gorm.DB, tokens *TokenManager) *Handler {
	return &Handler{db: db, tokens: tokens}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)

	api := r.Group("/api/v1", RequireAuth(h.tokens))
	{
		users := api.Group("/users")
		{
			users.GET("/:user_id", h.GetUser)
			users.GET("/:user_id/profile", h.GetProfile)
			users.GET("/:user_id/follows", h.ListFollows)
			users.POST("/:user_id/follows", h.CreateFollow)
			users.DELETE("/:user_id/follows/:target_id", h.DeleteFollow)
		}

		posts := api.Group("/posts")
		{
			posts.GET("", h.ListPosts)
			posts.POST("", h.CreatePost)
			posts.DELETE("/:post_id", h.DeletePost)
			posts.POST("/:post_id/like", h.Like)
			posts.DELETE("/:post_id/like", h.Unlike)
			posts.GET("/:post_id/comments", h.ListComments)
			posts.POST("/:post_id/comments", h.CreateComment)
		}

		saved := api.Group("/saved-posts")
		{
			saved.GET("/user/:user_id", h.ListSavedPosts)
			saved.POST("", h.CreateSavedPost)
			saved.DELETE("/:edge_id", h.DeleteSavedPost)
		}
	}
}

type registerRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name"`
	Img         string `json:"img"`
}

// Register handles POST /register.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		response.InternalError(c, "failed to hash password")
		return
	}

	user := UserModel{
		ID:           uuid.New().String(),
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Img:          req.Img,
	}
	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			response.Conflict(c, "username already taken")
			return
		}
		response.InternalError(c, "failed to create user")
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Username)
	if err != nil {
		response.InternalError(c, "failed to issue token")
		return
	}

	response.Created(c, gin.H{"user": user.ToUser(), "token": token})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var user UserModel
	if err := h.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		response.Unauthorized(c, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		response.Unauthorized(c, "invalid credentials")
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Username)
	if err != nil {
		response.InternalError(c, "failed to issue token")
		return
	}

	response.Success(c, gin.H{"user": user.ToUser(), "token": token})
}

// GetUser handles GET /api/v1/users/:user_id.
func (h *Handler) GetUser(c *gin.Context) {
	var user UserModel
	if err := h.db.First(&user, "id = ?", c.Param("user_id")).Error; err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.Success(c, user.ToUser())
}

// GetProfile handles GET /api/v1/users/:user_id/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	var user UserModel
	if err := h.db.First(&user, "id = ?", c.Param("user_id")).Error; err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.Success(c, user.ToProfile())
}

// ListFollows handles GET /api/v1/users/:user_id/follows.
func (h *Handler) ListFollows(c *gin.Context) {
	var models []FollowEdgeModel
	if err := h.db.Where("follower_id = ?", c.Param("user_id")).Find(&models).Error; err != nil {
		response.InternalError(c, "failed to list follows")
		return
	}
	edges := make([]domain.FollowEdge, 0, len(models))
	for _, m := range models {
		edges = append(edges, m.ToEdge())
	}
	response.Success(c, edges)
}

type createFollowRequest struct {
	TargetID string `json:"target_id" binding:"required"`
}

// CreateFollow handles POST /api/v1/users/:user_id/follows.
func (h *Handler) CreateFollow(c *gin.Context) {
	followerID := c.Param("user_id")
	if followerID != actorID(c) {
		response.Forbidden(c, "cannot create follows for another user")
		return
	}

	var req createFollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.TargetID == followerID {
		response.BadRequest(c, "cannot follow yourself")
		return
	}

	var target UserModel
	if err := h.db.First(&target, "id = ?", req.TargetID).Error; err != nil {
		response.NotFound(c, "target user not found")
		return
	}

	edge := FollowEdgeModel{
		ID:         uuid.New().String(),
		FollowerID: followerID,
		FollowedID: req.TargetID,
	}
	if err := h.db.Create(&edge).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			response.Conflict(c, "already following")
			return
		}
		response.InternalError(c, "failed to create follow")
		return
	}

	response.Created(c, edge.ToEdge())
}

// DeleteFollow handles DELETE /api/v1/users/:user_id/follows/:target_id.
func (h *Handler) DeleteFollow(c *gin.Context) {
	followerID := c.Param("user_id")
	if followerID != actorID(c) {
		response.Forbidden(c, "cannot delete follows for another user")
		return
	}

	result := h.db.Where("follower_id = ? AND followed_id = ?", followerID, c.Param("target_id")).
		Delete(&FollowEdgeModel{})
	if result.Error != nil {
		response.InternalError(c, "failed to delete follow")
		return
	}
	if result.RowsAffected == 0 {
		response.NotFound(c, "not following")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// ListPosts handles GET /api/v1/posts. Posts carry the viewer's like
// flag so the client never has to enumerate like edges.
func (h *Handler) ListPosts(c *gin.Context) {
	viewerID := actorID(c)

	var models []PostModel
	if err := h.db.Order("created_at DESC").Find(&models).Error; err != nil {
		response.InternalError(c, "failed to list posts")
		return
	}

	liked := make(map[string]bool)
	var likes []LikeModel
	if err := h.db.Where("user_id = ?", viewerID).Find(&likes).Error; err == nil {
		for _, l := range likes {
			liked[l.PostID] = true
		}
	}

	posts := make([]domain.Post, 0, len(models))
	for _, m := range models {
		posts = append(posts, domain.Post{
			ID:             m.ID,
			AuthorID:       m.AuthorID,
			Content:        m.Content,
			Image:          m.Image,
			CreatedAt:      m.CreatedAt,
			LikeCount:      m.LikeCount,
			CommentCount:   m.CommentCount,
			ViewerHasLiked: liked[m.ID],
		})
	}
	response.Success(c, posts)
}

type createPostRequest struct {
	Content string `json:"content" binding:"required"`
	Image   string `json:"image"`
}

// CreatePost handles POST /api/v1/posts.
func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	post := PostModel{
		ID:       uuid.New().String(),
		AuthorID: actorID(c),
		Content:  req.Content,
		Image:    req.Image,
	}
	if err := h.db.Create(&post).Error; err != nil {
		response.InternalError(c, "failed to create post")
		return
	}

	response.Created(c, domain.Post{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Content:   post.Content,
		Image:     post.Image,
		CreatedAt: post.CreatedAt,
	})
}

// DeletePost handles DELETE /api/v1/posts/:post_id. Only the author may
// delete.
func (h *Handler) DeletePost(c *gin.Context) {
	postID := c.Param("post_id")

	var post PostModel
	if err := h.db.First(&post, "id = ?", postID).Error; err != nil {
		response.NotFound(c, "post not found")
		return
	}
	if post.AuthorID != actorID(c) {
		response.Forbidden(c, "not the author")
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&LikeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&CommentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&SavedPostEdgeModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		pkglog.Ctx(c.Request.Context()).Error().Err(err).Str(pkglog.FieldPostID, postID).Msg("post delete failed")
		response.InternalError(c, "failed to delete post")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Like handles POST /api/v1/posts/:post_id/like.
func (h *Handler) Like(c *gin.Context) {
	postID := c.Param("post_id")
	viewerID := actorID(c)

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var post PostModel
		if err := tx.First(&post, "id = ?", postID).Error; err != nil {
			return err
		}
		like := LikeModel{ID: uuid.New().String(), PostID: postID, UserID: viewerID}
		if err := tx.Create(&like).Error; err != nil {
			return err
		}
		return tx.Model(&post).Update("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "post not found")
			return
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			response.Conflict(c, "already liked")
			return
		}
		response.InternalError(c, "failed to like post")
		return
	}
	response.Created(c, gin.H{"liked": true})
}

// Unlike handles DELETE /api/v1/posts/:post_id/like.
func (h *Handler) Unlike(c *gin.Context) {
	postID := c.Param("post_id")
	viewerID := actorID(c)

	err := h.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("post_id = ? AND user_id = ?", postID, viewerID).Delete(&LikeModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&PostModel{}).Where("id = ?", postID).
			Update("like_count", gorm.Expr("like_count - 1")).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "like not found")
			return
		}
		response.InternalError(c, "failed to unlike post")
		return
	}
	response.Success(c, gin.H{"liked": false})
}

// ListComments handles GET /api/v1/posts/:post_id/comments.
func (h *Handler) ListComments(c *gin.Context) {
	var models []CommentModel
	err := h.db.Where("post_id = ?", c.Param("post_id")).Order("created_at ASC").Find(&models).Error
	if err != nil {
		response.InternalError(c, "failed to list comments")
		return
	}
	comments := make([]domain.Comment, 0, len(models))
	for _, m := range models {
		comments = append(comments, m.ToComment())
	}
	response.Success(c, comments)
}

type createCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateComment handles POST /api/v1/posts/:post_id/comments.
func (h *Handler) CreateComment(c *gin.Context) {
	postID := c.Param("post_id")

	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	comment := CommentModel{
		ID:       uuid.New().String(),
		PostID:   postID,
		AuthorID: actorID(c),
		Content:  req.Content,
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var post PostModel
		if err := tx.First(&post, "id = ?", postID).Error; err != nil {
			return err
		}
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&post).Update("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "post not found")
			return
		}
		response.InternalError(c, "failed to create comment")
		return
	}

	response.Created(c, comment.ToComment())
}

// ListSavedPosts handles GET /api/v1/saved-posts/user/:user_id.
func (h *Handler) ListSavedPosts(c *gin.Context) {
	var models []SavedPostEdgeModel
	if err := h.db.Where("user_id = ?", c.Param("user_id")).Find(&models).Error; err != nil {
		response.InternalError(c, "failed to list saved posts")
		return
	}
	edges := make([]domain.SavedPostEdge, 0, len(models))
	for _, m := range models {
		edges = append(edges, m.ToEdge())
	}
	response.Success(c, edges)
}

type createSavedPostRequest struct {
	UserID string `json:"user_id" binding:"required"`
	PostID string `json:"post_id" binding:"required"`
}

// CreateSavedPost handles POST /api/v1/saved-posts.
func (h *Handler) CreateSavedPost(c *gin.Context) {
	var req createSavedPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.UserID != actorID(c) {
		response.Forbidden(c, "cannot save posts for another user")
		return
	}

	var post PostModel
	if err := h.db.First(&post, "id = ?", req.PostID).Error; err != nil {
		response.NotFound(c, "post not found")
		return
	}

	edge := SavedPostEdgeModel{
		ID:     uuid.New().String(),
		UserID: req.UserID,
		PostID: req.PostID,
	}
	if err := h.db.Create(&edge).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			response.Conflict(c, "already saved")
			return
		}
		response.InternalError(c, "failed to save post")
		return
	}
	response.Created(c, edge.ToEdge())
}

// DeleteSavedPost handles DELETE /api/v1/saved-posts/:edge_id.
func (h *Handler) DeleteSavedPost(c *gin.Context) {
	var edge SavedPostEdgeModel
	if err := h.db.First(&edge, "id = ?", c.Param("edge_id")).Error; err != nil {
		response.NotFound(c, "saved post not found")
		return
	}
	if edge.UserID != actorID(c) {
		response.Forbidden(c, "cannot delete another user's saved post")
		return
	}

	if err := h.db.Delete(&edge).Error; err != nil {
		response.InternalError(c, "failed to delete saved post")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
