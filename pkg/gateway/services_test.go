package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/medscan-console/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_Login(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body.Email)
		assert.Equal(t, "secret1", body.Password)

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok",
			"token_type":   "bearer",
			"user":         map[string]any{"user_id": "u1", "email": "a@b.com", "full_name": "Jane", "role": "user"},
		})
	})
	client := newTestClient(t, handler, &fakeCreds{})

	result, err := client.Auth.Login(context.Background(), LoginRequest{Email: "a@b.com", Password: "secret1"})

	require.NoError(t, err)
	assert.Equal(t, "tok", result.AccessToken)
	assert.Equal(t, "Jane", result.User.FullName)
}

func TestAuth_LoginRejectsIncompleteResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing token", `{"user":{"user_id":"u1"}}`},
		{"missing user id", `{"access_token":"tok","user":{}}`},
		{"array body", `[]`},
		{"wrong type", `{"access_token":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			client := newTestClient(t, handler, &fakeCreds{})

			_, err := client.Auth.Login(context.Background(), LoginRequest{})

			var decodeErr *domain.DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestAnalysis_UploadMultipart(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analysis/upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "scan.png", header.Filename)
		assert.Equal(t, "pixels", string(data))

		writeJSON(w, http.StatusCreated, map[string]any{
			"message":    "File uploaded successfully",
			"filename":   "scan.png",
			"file_type":  "image",
			"image_data": "aGVsbG8=",
		})
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})

	result, err := client.Analysis.Upload(context.Background(), "scan.png", strings.NewReader("pixels"))

	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", result.ImageData)
	assert.Equal(t, "image", result.FileType)
}

func TestAnalysis_HistoryAndAnalyze(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/api/analysis/history", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]any{"analyses": []map[string]any{
			{"id": "a2", "filename": "b.png", "analysis": "x", "findings": []string{"f1", "f2"}},
			{"id": "a1", "filename": "a.png", "analysis": "y"},
		}})
	})
	handler.HandleFunc("/api/analysis/analyze", func(w http.ResponseWriter, r *http.Request) {
		var req domain.AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.EnableXAI)
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":       "a3",
			"analysis": "### 1. Findings\nclear",
			"findings": []string{"none"},
			"keywords": []string{"chest"},
			"doctor_recommendations": map[string]any{
				"urgency_level": "Urgent", "primary_specialist": "Pulmonologist",
				"additional_specialists": []string{"Radiologist"},
			},
			"pubmed_articles": []map[string]any{{"id": "PMD1", "title": "Study", "journal": "J", "year": "2024"}},
			"filename":        "c.png",
		})
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})
	ctx := context.Background()

	history, err := client.Analysis.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "a2", history[0].ID, "server order is preserved")
	assert.Equal(t, "Routine", history[1].Urgency())

	record, err := client.Analysis.Analyze(ctx, domain.AnalyzeRequest{Filename: "c.png", ImageData: "x", EnableXAI: true})
	require.NoError(t, err)
	assert.Equal(t, "Urgent", record.Urgency())
	assert.Equal(t, []string{"Radiologist"}, record.Recommendations.AdditionalSpecialists)
	assert.Equal(t, "Study", record.PubMedArticles[0].Title)
}

func TestAnalysis_GenerateReport(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analysis/a1/report", r.URL.Path)
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["include_references"])
		writeJSON(w, http.StatusOK, map[string]string{
			"report_data": base64.StdEncoding.EncodeToString(pdf),
			"filename":    "medical_report_a1.pdf",
		})
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})

	report, err := client.Analysis.GenerateReport(context.Background(), "a1", true)

	require.NoError(t, err)
	assert.Equal(t, pdf, report.PDF)
	assert.Equal(t, "medical_report_a1.pdf", report.Filename)
}

func TestConsultations_ListAcceptsBothShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"id":"c1","description":"chest pain","creator":"Jane","participants":5,"consultation_stage":"initial"}]`},
		{"wrapped", `{"rooms":[{"id":"c1","description":"chest pain","creator":"Jane","participants":["a","b","c","d","e"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			client := newTestClient(t, handler, &fakeCreds{token: "tok"})

			rooms, err := client.Consultations.List(context.Background())

			require.NoError(t, err)
			require.Len(t, rooms, 1)
			assert.Equal(t, "c1", rooms[0].ID)
			assert.Equal(t, 5, rooms[0].Participants)
			assert.Equal(t, domain.StageInitial, rooms[0].Stage)
		})
	}
}

func TestConsultations_GetNormalizesMessages(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id":"c1","description":"d","creator":"Jane","created_at":"2024-01-01T00:00:00",
			"participants":5,"consultation_stage":"summary",
			"specialist_opinions":["looks fine"],
			"messages":[
				{"sender":"Dr. Michael Rodriguez (Radiologist)","message":"opacity","timestamp":"t1","specialist_type":null},
				{"user":"Dr. Chief Medical Officer","content":"summary text","timestamp":"t2"}
			]}`))
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})

	room, err := client.Consultations.Get(context.Background(), "c1")

	require.NoError(t, err)
	assert.True(t, room.Stage.IsSummary())
	require.Len(t, room.Messages, 2)
	assert.Equal(t, "radiologist", room.Messages[0].SpecialistType)
	assert.Equal(t, "summary text", room.Messages[1].Message)
	assert.Equal(t, "summary", room.Messages[1].SpecialistType)
}

func TestConsultations_UnknownMessageShape(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"c1","messages":[{"text":"??"}]}`))
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})

	_, err := client.Consultations.Get(context.Background(), "c1")

	var decodeErr *domain.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, decodeErr.Reason, "unrecognized message shape")
}

func TestConsultations_SendStartAutoComplete(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/api/consultation/c1/message", func(w http.ResponseWriter, r *http.Request) {
		var req domain.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Jane", req.UserName)
		writeJSON(w, http.StatusOK, map[string]any{"sender": req.UserName, "message": req.Message, "timestamp": "t"})
	})
	handler.HandleFunc("/api/consultation/c1/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Consultation started successfully"})
	})
	handler.HandleFunc("/api/consultation/c1/auto-complete", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Consultation completed successfully"})
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})
	ctx := context.Background()

	msg, err := client.Consultations.SendMessage(ctx, "c1", domain.SendMessageRequest{Message: "hello", UserName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Message)

	ack, err := client.Consultations.Start(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Consultation started successfully", ack)

	ack, err = client.Consultations.AutoComplete(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Consultation completed successfully", ack)
}

func TestQA_HistoryNormalizesAllShapes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qa/s1/history", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"session_id":"s1","room_name":"Knee MRI",
			"messages":[
				{"user":"Patient","content":"what is this?","timestamp":"t1"},
				{"user":"AI Assistant","content":"a meniscus tear","timestamp":"t2"},
				{"sender":"System","message":"room created","timestamp":"t0"},
				{"role":"assistant","content":"anything else?","timestamp":"t3"}
			]}`))
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})

	session, err := client.QA.History(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
	assert.Equal(t, "Knee MRI", session.Title)
	require.Len(t, session.Messages, 4)
	assert.Equal(t, domain.RoleUser, session.Messages[0].Role)
	assert.Equal(t, "Patient", session.Messages[0].Sender)
	assert.Equal(t, domain.RoleAssistant, session.Messages[1].Role)
	assert.Equal(t, domain.RoleSystem, session.Messages[2].Role)
	assert.Equal(t, "room created", session.Messages[2].Content)
	assert.Equal(t, domain.RoleAssistant, session.Messages[3].Role)
}

func TestQA_CreateListAsk(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/api/qa/create", func(w http.ResponseWriter, r *http.Request) {
		var req domain.CreateQASessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusCreated, map[string]string{"id": "s1", "room_name": req.RoomName, "creator": req.CreatorName, "created_at": "t"})
	})
	handler.HandleFunc("/api/qa/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{{"id": "s1", "room_name": "Knee MRI", "creator": "Patient"}})
	})
	handler.HandleFunc("/api/qa/s1/question", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"question": "q", "answer": "a", "timestamp": "t"})
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})
	ctx := context.Background()

	created, err := client.QA.Create(ctx, domain.CreateQASessionRequest{RoomName: "Knee MRI", CreatorName: "Patient"})
	require.NoError(t, err)
	assert.Equal(t, "s1", created.ID)

	sessions, err := client.QA.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Knee MRI", sessions[0].Title)

	answer, err := client.QA.Ask(ctx, "s1", "q")
	require.NoError(t, err)
	assert.Equal(t, "a", answer.Answer)
}

func TestReports_ListAndDownload(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/api/reports/list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{{
			"id": "r1", "title": "Medical Report - a.png", "analysis_id": "a1",
			"content": "# Report", "created_at": "t", "filename": "report_1.md",
		}})
	})
	handler.HandleFunc("/api/reports/r1/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		w.Header().Set("Content-Disposition", `attachment; filename="report_1.md"`)
		_, _ = w.Write([]byte("# Report"))
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})
	ctx := context.Background()

	reports, err := client.Reports.List(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, domain.ReportSourceStored, reports[0].Source)

	dl, err := client.Reports.Download(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "report_1.md", dl.Filename)
	assert.Equal(t, "text/markdown", dl.ContentType)
	assert.Equal(t, "# Report", string(dl.Content))
}
