package http

import (
	"context"
	"crypto/subtle"
	stdhttp "net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"shareme/app/internal/domain/accounts"
)

const botSearchDefaultLimit = 10

type botStartInput struct {
	Secret string `header:"X-Bot-Secret"`
	Body   struct {
		TelegramID string `json:"telegramId" minLength:"1" maxLength:"64"`
		FirstName  string `json:"firstName,omitempty" maxLength:"256"`
		LastName   string `json:"lastName,omitempty" maxLength:"256"`
		Username   string `json:"username,omitempty" maxLength:"256"`
	}
}

type botStartOutput struct {
	Body struct {
		Name      string `json:"name"`
		PostCount int    `json:"postCount"`
		LoginURL  string `json:"loginUrl"`
	}
}

type botPostsInput struct {
	Secret string `header:"X-Bot-Secret"`
	ID     string `path:"id" maxLength:"64"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000"`
}

type botSearchInput struct {
	Secret string `header:"X-Bot-Secret"`
	Query  string `query:"q" maxLength:"200"`
	Limit  int    `query:"limit" minimum:"0" maximum:"50"`
}

type botSearchOutput struct {
	Body struct {
		Results []summaryBody `json:"results"`
	}
}

func (s *Server) registerBotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "bot-start",
		Method:      stdhttp.MethodPost,
		Path:        "/bot/start",
		Summary:     "Register a bot user and issue a login link",
		Tags:        []string{"bot"},
		Hidden:      s.botSecret == "",
		Errors:      []int{stdhttp.StatusUnauthorized, stdhttp.StatusNotFound},
	}, s.botStartHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "bot-user-posts",
		Method:      stdhttp.MethodGet,
		Path:        "/bot/users/{id}/posts",
		Summary:     "List a bot user's pages",
		Tags:        []string{"bot"},
		Hidden:      s.botSecret == "",
		Errors:      []int{stdhttp.StatusUnauthorized, stdhttp.StatusNotFound},
	}, s.botPostsHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "bot-search",
		Method:      stdhttp.MethodGet,
		Path:        "/bot/search",
		Summary:     "Search pages for inline bot answers",
		Tags:        []string{"bot"},
		Hidden:      s.botSecret == "",
		Errors:      []int{stdhttp.StatusUnauthorized, stdhttp.StatusNotFound},
	}, s.botSearchHandler)
}

// authorizeBot hides the bot surface entirely when no secret is configured.
func (s *Server) authorizeBot(ctx context.Context, supplied string) error {
	if s.botSecret == "" {
		return &apiError{status: stdhttp.StatusNotFound, Code: "not_found"}
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(supplied)), []byte(s.botSecret)) != 1 {
		if s.logger != nil {
			fields := logrus.Fields{"secret_supplied": supplied != ""}
			if requestID := RequestIDFromContext(ctx); requestID != "" {
				fields["request_id"] = requestID
			}
			s.logger.WithFields(fields).Warn("bot request rejected")
		}
		return &apiError{status: stdhttp.StatusUnauthorized, Code: "unauthorized"}
	}
	return nil
}

func (s *Server) botStartHandler(ctx context.Context, input *botStartInput) (*botStartOutput, error) {
	if err := s.authorizeBot(ctx, input.Secret); err != nil {
		return nil, err
	}

	account, err := s.accounts.Start(ctx, accounts.Profile{
		ID:        input.Body.TelegramID,
		FirstName: input.Body.FirstName,
		LastName:  input.Body.LastName,
		Username:  input.Body.Username,
	})
	if err != nil {
		return nil, s.apiFailure(ctx, err, "starting bot session", logrus.Fields{"user_id": input.Body.TelegramID})
	}

	out := &botStartOutput{}
	out.Body.Name = account.User.Name
	out.Body.PostCount = account.PostCount
	out.Body.LoginURL = account.LoginURL
	return out, nil
}

func (s *Server) botPostsHandler(ctx context.Context, input *botPostsInput) (*summariesOutput, error) {
	if err := s.authorizeBot(ctx, input.Secret); err != nil {
		return nil, err
	}

	posts, err := s.accounts.Posts(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "listing bot user posts", logrus.Fields{"user_id": input.ID})
	}
	return s.summariesOutput(posts), nil
}

func (s *Server) botSearchHandler(ctx context.Context, input *botSearchInput) (*botSearchOutput, error) {
	if err := s.authorizeBot(ctx, input.Secret); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = botSearchDefaultLimit
	}

	results, err := s.pages.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "searching pages for bot", logrus.Fields{"query": input.Query})
	}

	out := &botSearchOutput{}
	out.Body.Results = s.summariesOutput(results).Body.Pages
	return out, nil
}
