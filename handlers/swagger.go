package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRoutes) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>kbwiki API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI document for the public and authenticated routes.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": {
    "title": "kbwiki",
    "version": "v1.0.0"
  },
  "paths": {
    "/api/v1/auth/login": {
      "post": {
        "summary": "Sign in with e-mail and password",
        "responses": {
          "200": {
            "description": "tokens returned"
          },
          "401": {
            "description": "invalid credentials"
          }
        }
      }
    },
    "/api/v1/auth/guest": {
      "post": {
        "summary": "Exchange the team password for a read-only token",
        "responses": {
          "200": {
            "description": "guest token"
          },
          "401": {
            "description": "invalid password"
          }
        }
      }
    },
    "/api/v1/auth/refresh": {
      "post": {
        "summary": "Rotate the refresh token",
        "responses": {
          "200": {
            "description": "new tokens"
          },
          "401": {
            "description": "invalid refresh"
          }
        }
      }
    },
    "/api/v1/auth/logout": {
      "post": {
        "summary": "Invalidate refresh token and access token",
        "responses": {
          "200": {
            "description": "logged out"
          }
        }
      }
    },
    "/api/v1/me": {
      "get": {
        "summary": "Current principal",
        "responses": {
          "200": {
            "description": "principal"
          }
        }
      }
    },
    "/api/v1/documents": {
      "get": {
        "summary": "List all documents",
        "responses": {
          "200": {
            "description": "documents"
          }
        }
      },
      "post": {
        "summary": "Create a document and assign its serial",
        "responses": {
          "201": {
            "description": "created"
          },
          "400": {
            "description": "validation failed"
          },
          "403": {
            "description": "not allowed"
          }
        }
      }
    },
    "/api/v1/documents/search": {
      "get": {
        "summary": "Search documents (q)",
        "responses": {
          "200": {
            "description": "matches"
          }
        }
      }
    },
    "/api/v1/documents/{id}": {
      "get": {
        "summary": "Get a document",
        "responses": {
          "200": {
            "description": "document"
          },
          "404": {
            "description": "not found"
          }
        }
      },
      "patch": {
        "summary": "Edit title, content or tags",
        "responses": {
          "200": {
            "description": "document"
          },
          "404": {
            "description": "not found"
          }
        }
      },
      "delete": {
        "summary": "Delete a document (captain, team-lead)",
        "responses": {
          "204": {
            "description": "deleted"
          },
          "403": {
            "description": "not allowed"
          }
        }
      }
    },
    "/api/v1/documents/{id}/pin": {
      "post": {
        "summary": "Toggle pinned",
        "responses": {
          "200": {
            "description": "document"
          }
        }
      }
    },
    "/api/v1/documents/{id}/comments": {
      "get": {
        "summary": "List comments oldest first",
        "responses": {
          "200": {
            "description": "comments"
          }
        }
      },
      "post": {
        "summary": "Add a comment",
        "responses": {
          "201": {
            "description": "comment"
          }
        }
      }
    },
    "/api/v1/comments/{id}": {
      "delete": {
        "summary": "Delete a comment",
        "responses": {
          "204": {
            "description": "deleted"
          },
          "403": {
            "description": "not allowed"
          }
        }
      }
    },
    "/api/v1/attachments": {
      "post": {
        "summary": "Upload multipart files",
        "responses": {
          "200": {
            "description": "urls"
          }
        }
      }
    },
    "/api/v1/subteams": {
      "get": {
        "summary": "List sub-teams",
        "responses": {
          "200": {
            "description": "sub-teams"
          }
        }
      }
    },
    "/api/v1/subteams/{id}/documents": {
      "get": {
        "summary": "Browse a sub-team (tag filter)",
        "responses": {
          "200": {
            "description": "pinned and unpinned documents"
          },
          "400": {
            "description": "invalid sub-team"
          }
        }
      }
    },
    "/api/v1/subteams/{id}/tags": {
      "get": {
        "summary": "Tags used in a sub-team",
        "responses": {
          "200": {
            "description": "tags"
          }
        }
      }
    },
    "/api/v1/subteams/{id}/serial": {
      "get": {
        "summary": "Preview the next serial",
        "responses": {
          "200": {
            "description": "serial"
          }
        }
      }
    },
    "/api/v1/subteams/{id}/members": {
      "get": {
        "summary": "Members of a sub-team",
        "responses": {
          "200": {
            "description": "members"
          }
        }
      }
    },
    "/api/v1/account-requests": {
      "post": {
        "summary": "Request an account",
        "responses": {
          "201": {
            "description": "pending request"
          },
          "400": {
            "description": "validation failed"
          }
        }
      },
      "get": {
        "summary": "Pending requests (captain)",
        "responses": {
          "200": {
            "description": "requests and duplicates"
          }
        }
      }
    },
    "/api/v1/account-requests/cleanup": {
      "post": {
        "summary": "Approve requests for existing accounts",
        "responses": {
          "200": {
            "description": "count"
          }
        }
      }
    },
    "/api/v1/account-requests/{id}/approve": {
      "post": {
        "summary": "Approve a request",
        "responses": {
          "200": {
            "description": "request"
          },
          "409": {
            "description": "already decided"
          }
        }
      }
    },
    "/api/v1/account-requests/{id}/deny": {
      "post": {
        "summary": "Deny a request",
        "responses": {
          "200": {
            "description": "request"
          },
          "409": {
            "description": "already decided"
          }
        }
      }
    },
    "/api/v1/account-requests/{id}": {
      "delete": {
        "summary": "Delete a request",
        "responses": {
          "204": {
            "description": "deleted"
          }
        }
      }
    },
    "/api/v1/members": {
      "get": {
        "summary": "Members grouped by sub-team (captain)",
        "responses": {
          "200": {
            "description": "members"
          }
        }
      }
    },
    "/api/v1/members/{id}": {
      "patch": {
        "summary": "Change role or sub-team",
        "responses": {
          "200": {
            "description": "member"
          }
        }
      },
      "delete": {
        "summary": "Remove a member",
        "responses": {
          "204": {
            "description": "removed"
          }
        }
      }
    },
    "/api/v1/portfolio": {
      "get": {
        "summary": "Own portfolio",
        "responses": {
          "200": {
            "description": "portfolio"
          },
          "404": {
            "description": "none yet"
          }
        }
      },
      "put": {
        "summary": "Save own portfolio",
        "responses": {
          "200": {
            "description": "portfolio"
          },
          "409": {
            "description": "slug taken"
          }
        }
      }
    },
    "/portfolio/{slug}": {
      "get": {
        "summary": "Public portfolio",
        "responses": {
          "200": {
            "description": "portfolio"
          },
          "404": {
            "description": "not found"
          }
        }
      }
    },
    "/health": {
      "get": {
        "summary": "Liveness check",
        "responses": {
          "200": {
            "description": "healthy"
          }
        }
      }
    },
    "/ready": {
      "get": {
        "summary": "Readiness check",
        "responses": {
          "200": {
            "description": "ready"
          },
          "503": {
            "description": "not ready"
          }
        }
      }
    },
    "/metrics": {
      "get": {
        "summary": "Prometheus metrics",
        "responses": {
          "200": {
            "description": "metrics"
          }
        }
      }
    }
  }
}`
