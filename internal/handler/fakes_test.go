package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/service"
)

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type fakeSession struct {
	unlocked   bool
	passphrase string
	changed    *service.ChangePasswordRequest
	err        error
}

func (f *fakeSession) IsUnlocked() bool { return f.unlocked }

func (f *fakeSession) Status() service.SessionStatus {
	return service.SessionStatus{Unlocked: f.unlocked}
}

func (f *fakeSession) Unlock(_ context.Context, req service.UnlockRequest) (service.SessionStatus, error) {
	if f.err != nil {
		return service.SessionStatus{}, f.err
	}
	f.unlocked = req.Passphrase == f.passphrase
	return service.SessionStatus{Unlocked: f.unlocked}, nil
}

func (f *fakeSession) Lock() (service.SessionStatus, error) {
	f.unlocked = false
	return service.SessionStatus{}, nil
}

func (f *fakeSession) ChangePassword(_ context.Context, req service.ChangePasswordRequest) error {
	f.changed = &req
	return f.err
}

type fakeStudents struct {
	filter   models.StudentFilter
	override service.OverrideRequest
	err      error
}

func (f *fakeStudents) List(_ context.Context, filter models.StudentFilter) ([]models.StudentInfo, *models.Pagination, error) {
	f.filter = filter
	return []models.StudentInfo{{ID: "S1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, f.err
}

func (f *fakeStudents) Get(_ context.Context, id string) (*service.StudentDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.StudentDetail{StudentInfo: models.StudentInfo{ID: id}, Overrides: []models.Override{}}, nil
}

func (f *fakeStudents) Marks(_ context.Context, id string) ([]models.Mark, error) {
	return []models.Mark{{StudentID: id, ModuleCode: "M1"}}, f.err
}

func (f *fakeStudents) Results(_ context.Context, id string) ([]models.Result, error) {
	return []models.Result{{StudentID: id}}, f.err
}

func (f *fakeStudents) Override(_ context.Context, id string, req service.OverrideRequest) (*models.Override, error) {
	f.override = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Override{ID: "o-1", StudentID: id, Reason: req.Reason, Note: req.Note}, nil
}

func (f *fakeStudents) Reclassify(_ context.Context, id string) (*models.StudentInfo, error) {
	return &models.StudentInfo{ID: id}, f.err
}

type fakeModules struct {
	code string
	req  service.ModuleRequest
	err  error
}

func (f *fakeModules) List(context.Context, models.ModuleFilter) ([]models.Module, error) {
	return []models.Module{{Code: "M1", Credit: 20, Term: models.TermAutumn}}, f.err
}

func (f *fakeModules) Create(_ context.Context, req service.ModuleRequest) (*models.Module, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Module{Code: req.Code, Credit: req.Credit}, nil
}

func (f *fakeModules) Update(_ context.Context, code string, req service.ModuleRequest) (*service.ModuleUpdate, error) {
	f.code, f.req = code, req
	if f.err != nil {
		return nil, f.err
	}
	return &service.ModuleUpdate{Module: models.Module{Code: code, Credit: req.Credit}, Recomputing: 2}, nil
}

type fakeImporter struct {
	req      service.InsertRequest
	contents string
	err      error
}

func (f *fakeImporter) Insert(_ context.Context, req service.InsertRequest) (*models.IngestReport, error) {
	f.req = req
	if data, err := os.ReadFile(req.Path); err == nil {
		f.contents = string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.IngestReport{BatchID: "b-1", Accepted: 1, Rejected: []models.RowDiagnostic{}, Failures: []models.UnitFailure{}}, nil
}

type fakeExporter struct {
	format, year string
	err          error
}

func (f *fakeExporter) Awards(_ context.Context, format, year string) (*service.ExportFile, error) {
	f.format, f.year = format, year
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportFile{Filename: "awards_all.csv", ContentType: "text/csv", Data: []byte("Student ID\nS1\n"), Rows: 1}, nil
}

type testSurface struct {
	session  *fakeSession
	students *fakeStudents
	modules  *fakeModules
	imports  *fakeImporter
	exports  *fakeExporter
	router   *gin.Engine
}

func newTestSurface(t *testing.T, unlocked bool) *testSurface {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &testSurface{
		session:  &fakeSession{unlocked: unlocked, passphrase: "s3cret"},
		students: &fakeStudents{},
		modules:  &fakeModules{},
		imports:  &fakeImporter{},
		exports:  &fakeExporter{},
	}
	metrics := service.NewMetricsService()
	s.router = NewRouter(Handlers{
		Session:  NewSessionHandler(s.session),
		Students: NewStudentHandler(s.students),
		Modules:  NewModuleHandler(s.modules),
		Imports:  NewImportHandler(s.imports, ImportOptions{MaxFileBytes: 1024, UploadDir: t.TempDir()}, nil),
		Exports:  NewExportHandler(s.exports),
		Metrics:  NewMetricsHandler(metrics, s.session),
	}, s.session, metrics, nil, RouterOptions{EnableMetrics: true})
	return s
}
