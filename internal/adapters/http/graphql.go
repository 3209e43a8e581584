package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services. Queries are
// read-only; state changes go through the REST endpoints where the
// decision semantics live.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	applicationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Application",
		Fields: graphql.Fields{
			"id":                           &graphql.Field{Type: graphql.String},
			"application_no":               &graphql.Field{Type: graphql.String},
			"applicant_id":                 &graphql.Field{Type: graphql.String},
			"permit_type":                  &graphql.Field{Type: graphql.String},
			"status":                       &graphql.Field{Type: graphql.String},
			"coordinate_review_deadline":   &graphql.Field{Type: graphql.DateTime},
			"coordinate_revision_deadline": &graphql.Field{Type: graphql.DateTime},
			"coordinate_approved_at":       &graphql.Field{Type: graphql.DateTime},
			"coordinate_auto_approved":     &graphql.Field{Type: graphql.Boolean},
			"created_at":                   &graphql.Field{Type: graphql.DateTime},
			"updated_at":                   &graphql.Field{Type: graphql.DateTime},
		},
	})

	consentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "OverlapConsent",
		Fields: graphql.Fields{
			"id":                      &graphql.Field{Type: graphql.String},
			"new_application_id":      &graphql.Field{Type: graphql.String},
			"affected_application_id": &graphql.Field{Type: graphql.String},
			"affected_application_no": &graphql.Field{Type: graphql.String},
			"overlap_percentage":      &graphql.Field{Type: graphql.Float},
			"overlap_area_sq_meters":  &graphql.Field{Type: graphql.Float},
			"consent_status":          &graphql.Field{Type: graphql.String},
			"consent_file_name":       &graphql.Field{Type: graphql.String},
			"verification_remarks":    &graphql.Field{Type: graphql.String},
		},
	})

	itemType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ReviewableItem",
		Fields: graphql.Fields{
			"id":                   &graphql.Field{Type: graphql.String},
			"application_id":       &graphql.Field{Type: graphql.String},
			"kind":                 &graphql.Field{Type: graphql.String},
			"item_type":            &graphql.Field{Type: graphql.String},
			"order":                &graphql.Field{Type: graphql.Int},
			"status":               &graphql.Field{Type: graphql.String},
			"file_name":            &graphql.Field{Type: graphql.String},
			"auto_accept_deadline": &graphql.Field{Type: graphql.DateTime},
			"revision_deadline":    &graphql.Field{Type: graphql.DateTime},
			"is_auto_accepted":     &graphql.Field{Type: graphql.Boolean},
			"is_voided":            &graphql.Field{Type: graphql.Boolean},
			"admin_remarks":        &graphql.Field{Type: graphql.String},
		},
	})

	coordinateHistoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CoordinateHistory",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"application_id": &graphql.Field{Type: graphql.String},
			"point_count":    &graphql.Field{Type: graphql.Int},
			"status":         &graphql.Field{Type: graphql.String},
			"approved_at":    &graphql.Field{Type: graphql.DateTime},
			"approved_by":    &graphql.Field{Type: graphql.String},
			"replaced_by":    &graphql.Field{Type: graphql.String},
		},
	})

	historyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StatusHistory",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"from_status": &graphql.Field{Type: graphql.String},
			"to_status":   &graphql.Field{Type: graphql.String},
			"actor_id":    &graphql.Field{Type: graphql.String},
			"remarks":     &graphql.Field{Type: graphql.String},
			"created_at":  &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"application": &graphql.Field{
				Type:        applicationType,
				Description: "Get an application by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					actor, ok := actorFromCtx(p.Context)
					if !ok {
						return nil, &domain.AuthorizationError{Reason: "actor required"}
					}
					return deps.Applications.Get(p.Context, actor, p.Args["id"].(string))
				},
			},
			"applicationsByStatus": &graphql.Field{
				Type:        graphql.NewList(applicationType),
				Description: "Admin queue: applications in one pipeline state",
				Args: graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					actor, ok := actorFromCtx(p.Context)
					if !ok {
						return nil, &domain.AuthorizationError{Reason: "actor required"}
					}
					status := domain.ApplicationStatus(p.Args["status"].(string))
					return deps.Applications.ListByStatus(p.Context, actor, status, p.Args["limit"].(int))
				},
			},
			"statusHistory": &graphql.Field{
				Type:        graphql.NewList(historyType),
				Description: "Status audit trail for an application",
				Args: graphql.FieldConfigArgument{
					"application_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					actor, ok := actorFromCtx(p.Context)
					if !ok {
						return nil, &domain.AuthorizationError{Reason: "actor required"}
					}
					return deps.Applications.History(p.Context, actor, p.Args["application_id"].(string))
				},
			},
			"consents": &graphql.Field{
				Type:        graphql.NewList(consentType),
				Description: "Overlap consents required from an application",
				Args: graphql.FieldConfigArgument{
					"application_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					actor, ok := actorFromCtx(p.Context)
					if !ok {
						return nil, &domain.AuthorizationError{Reason: "actor required"}
					}
					return deps.Consents.List(p.Context, actor, p.Args["application_id"].(string))
				},
			},
			"items": &graphql.Field{
				Type:        graphql.NewList(itemType),
				Description: "Checklist items of one kind for an application",
				Args: graphql.FieldConfigArgument{
					"application_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"kind":           &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.KindAcceptanceRequirement)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					actor, ok := actorFromCtx(p.Context)
					if !ok {
						return nil, &domain.AuthorizationError{Reason: "actor required"}
					}
					kind := domain.ItemKind(p.Args["kind"].(string))
					return deps.Reviews.List(p.Context, actor, p.Args["application_id"].(string), kind)
				},
			},
			"coordinateHistory": &graphql.Field{
				Type:        graphql.NewList(coordinateHistoryType),
				Description: "Boundary ledger entries for an application, newest first",
				Args: graphql.FieldConfigArgument{
					"application_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					actor, ok := actorFromCtx(p.Context)
					if !ok {
						return nil, &domain.AuthorizationError{Reason: "actor required"}
					}
					return deps.Coordinates.CoordinateHistory(p.Context, actor, p.Args["application_id"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}

		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        withActor(c.UserContext(), actor),
		})

		return c.JSON(result)
	}
}
