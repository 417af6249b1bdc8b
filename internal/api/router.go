package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/leasehold/leasehold/internal/auth"
	"github.com/leasehold/leasehold/internal/authz"
	"github.com/leasehold/leasehold/internal/handlers"
	"github.com/leasehold/leasehold/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}

	// Public auth routes
	r.POST("/api/auth/login", authHandler.Login)

	// Protected routes
	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	// Landlords
	landlordHandler, err := handlers.NewLandlordHandler(db)
	if err != nil {
		return nil, err
	}
	landlords := api.Group("/landlords")
	{
		landlords.GET("", landlordHandler.List)
		landlords.GET("/:id", landlordHandler.Get)
		landlords.POST("", landlordHandler.Create)
		landlords.PATCH("/:id", landlordHandler.Update)
		landlords.DELETE("/:id", landlordHandler.Delete)
	}

	// Tenants
	tenantHandler, err := handlers.NewTenantHandler(db)
	if err != nil {
		return nil, err
	}
	tenants := api.Group("/tenants")
	{
		tenants.GET("", tenantHandler.List)
		tenants.GET("/:tenantId", tenantHandler.Get)
		tenants.POST("", tenantHandler.Create)
		tenants.PATCH("/:tenantId", tenantHandler.Update)
		tenants.DELETE("/:tenantId", tenantHandler.Delete)
	}

	// Roles
	roleHandler, err := handlers.NewRoleHandler(db)
	if err != nil {
		return nil, err
	}
	roles := api.Group("/roles")
	{
		roles.GET("", roleHandler.List)
		roles.GET("/:id", roleHandler.Get)
		roles.POST("", roleHandler.Create)
		roles.PATCH("/:id", roleHandler.Update)
		roles.DELETE("/:id", roleHandler.Delete)
		roles.GET("/:id/permissions", roleHandler.ListGrants)
		roles.POST("/:id/permissions", roleHandler.AttachPermission)
		roles.DELETE("/:id/permissions/:permissionId", roleHandler.DetachPermission)
	}

	// Permissions
	permHandler, err := handlers.NewPermissionHandler(db)
	if err != nil {
		return nil, err
	}
	perms := api.Group("/permissions")
	{
		perms.GET("", permHandler.List)
		perms.GET("/:id", permHandler.Get)
		perms.POST("", permHandler.Create)
		perms.PUT("/:id/default-policy", permHandler.SetDefaultPolicy)
		perms.DELETE("/:id", permHandler.Delete)
	}

	// Policies
	policyHandler, err := handlers.NewPolicyHandler(db)
	if err != nil {
		return nil, err
	}
	policies := api.Group("/policies")
	{
		policies.GET("", policyHandler.List)
		policies.GET("/:id", policyHandler.Get)
		policies.POST("", policyHandler.Create)
		policies.PATCH("/:id", policyHandler.Update)
		policies.DELETE("/:id", policyHandler.Delete)
	}

	// Users and direct grants
	userHandler, err := handlers.NewUserHandler(db)
	if err != nil {
		return nil, err
	}
	users := api.Group("/users")
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PATCH("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
		users.POST("/:id/permissions", userHandler.GrantPermission)
		users.DELETE("/:id/tenants/:tenantId/permissions/:permissionId", userHandler.RevokePermission)
	}

	// Role assignment and authorization checks. Mutating assignments inside a
	// tenant requires the manage:role permission in that tenant.
	assignmentHandler, err := handlers.NewAssignmentHandler(db)
	if err != nil {
		return nil, err
	}
	authzQuery, err := authz.NewQuery(db)
	if err != nil {
		return nil, err
	}
	manageRoles := middleware.RequirePermission(authzQuery, "manage", "role")
	api.POST("/tenants/:tenantId/assignments", manageRoles, assignmentHandler.AssignRoles)
	api.DELETE("/tenants/:tenantId/assignments", manageRoles, assignmentHandler.UnassignRoles)
	api.POST("/authorize/permission", assignmentHandler.CheckPermission)
	api.POST("/authorize/role", assignmentHandler.CheckRole)
	api.POST("/roles/:id/permissions/:permissionId/evaluate", assignmentHandler.EvaluateGrant)
	api.GET("/users/:id/tenants/:tenantId/permissions", assignmentHandler.ListUserPermissions)

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
