// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication
	SecurityResident                      // Any signed-in account
	SecurityAdmin                         // Signed-in account with role admin
)

// EndpointSecurityConfig maps "METHOD route-template" to the required security level.
// Route templates are the gorilla/mux path templates registered in the HTTP router.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Health & metrics
	"GET /health":  SecurityPublic,
	"GET /metrics": SecurityPublic,

	// Local identity and mock storage
	"POST /api/v1/auth/signin":         SecurityPublic,
	"POST /api/v1/auth/reset-password": SecurityPublic,
	"GET /api/v1/download/{token}":     SecurityPublic,

	// Requests
	"POST /api/v1/requests/registration":               SecurityPublic,
	"POST /api/v1/requests/certificate":                SecurityResident,
	"POST /api/v1/activities/{id}/enrollment-requests": SecurityResident,
	"GET /api/v1/requests":                             SecurityAdmin,
	"GET /api/v1/requests/{id}":                        SecurityAdmin,

	// Callable endpoints
	"POST /api/v1/callable/approveRequest":     SecurityAdmin,
	"POST /api/v1/callable/rejectRequest":      SecurityAdmin,
	"POST /api/v1/callable/sendBroadcastEmail": SecurityAdmin,
	"POST /api/v1/callable/createUser":         SecurityAdmin,

	// Activities
	"GET /api/v1/activities":                  SecurityResident,
	"POST /api/v1/activities":                 SecurityAdmin,
	"GET /api/v1/activities/{id}":             SecurityResident,
	"PUT /api/v1/activities/{id}/status":      SecurityAdmin,
	"GET /api/v1/activities/{id}/enrollments": SecurityAdmin,
	"POST /api/v1/activities/{id}/enroll":     SecurityResident,

	// Spaces & reservations
	"GET /api/v1/spaces":                                      SecurityResident,
	"POST /api/v1/spaces":                                     SecurityAdmin,
	"GET /api/v1/spaces/{id}":                                 SecurityResident,
	"PUT /api/v1/spaces/{id}":                                 SecurityAdmin,
	"DELETE /api/v1/spaces/{id}":                              SecurityAdmin,
	"GET /api/v1/spaces/{id}/reservations":                    SecurityResident,
	"POST /api/v1/spaces/{id}/reservations":                   SecurityResident,
	"DELETE /api/v1/spaces/{id}/reservations/{reservationId}": SecurityResident,

	// Content
	"GET /api/v1/posts":            SecurityPublic,
	"GET /api/v1/posts/{id}":       SecurityPublic,
	"POST /api/v1/posts":           SecurityAdmin,
	"DELETE /api/v1/posts/{id}":    SecurityAdmin,
	"GET /api/v1/projects":         SecurityPublic,
	"GET /api/v1/projects/{id}":    SecurityPublic,
	"POST /api/v1/projects":        SecurityAdmin,
	"DELETE /api/v1/projects/{id}": SecurityAdmin,

	// Users
	"GET /api/v1/users":           SecurityAdmin,
	"GET /api/v1/users/{id}":      SecurityAdmin,
	"PUT /api/v1/users/{id}/role": SecurityAdmin,
	"DELETE /api/v1/users/{id}":   SecurityAdmin,
	"GET /api/v1/me":              SecurityResident,
	"PUT /api/v1/me":              SecurityResident,

	// Uploads
	"POST /api/v1/uploads/{folder}": SecurityResident,

	// Session
	"GET /api/v1/session":        SecurityResident,
	"POST /api/v1/session":       SecurityResident,
	"DELETE /api/v1/session":     SecurityResident,
	"GET /api/v1/session/stream": SecurityPublic, // token travels as query parameter, checked by the handler
}

// GetSecurityLevel returns the security level for a given method and route template
func GetSecurityLevel(method, route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method+" "+route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
