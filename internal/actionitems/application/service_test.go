package application_test

import (
	"context"
	"errors"
	"testing"

	application "opsboard/internal/actionitems/application"
	actionitems "opsboard/internal/actionitems/domain"
	actionitemsmem "opsboard/internal/actionitems/infrastructure/memory"
	"opsboard/internal/auth"
)

type recordingLinker struct {
	anomalyID    string
	actionItemID string
}

func (l *recordingLinker) LinkActionItem(_ context.Context, anomalyID, actionItemID string) error {
	l.anomalyID = anomalyID
	l.actionItemID = actionItemID
	return nil
}

func itemContext(locationIDs []string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{
		OrgID:       "org-a",
		Role:        auth.RoleManager,
		Subject:     "user-1",
		LocationIDs: locationIDs,
	})
}

func TestCreate_OpensItemAndLinksAnomaly(t *testing.T) {
	repo := actionitemsmem.NewItemRepository()
	linker := &recordingLinker{}
	service, err := application.NewService(repo, application.WithLinker(linker))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	item, err := service.Create(itemContext(nil), application.CreateInput{
		Title:     "Investigate revenue drop",
		AnomalyID: "anomaly-1",
		Assignee:  "sam",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.Status != actionitems.StatusOpen {
		t.Fatalf("expected OPEN, got %q", item.Status)
	}
	if item.OrgID != "org-a" {
		t.Fatalf("expected tenant from context, got %q", item.OrgID)
	}
	if linker.anomalyID != "anomaly-1" || linker.actionItemID != item.ID {
		t.Fatalf("expected anomaly linked back, got %+v", linker)
	}
}

func TestCreate_RequiresTitle(t *testing.T) {
	repo := actionitemsmem.NewItemRepository()
	service, _ := application.NewService(repo)

	if _, err := service.Create(itemContext(nil), application.CreateInput{}); err == nil {
		t.Fatal("expected missing title rejected")
	}
}

func TestCreate_LocationOutsideGrantForbidden(t *testing.T) {
	repo := actionitemsmem.NewItemRepository()
	service, _ := application.NewService(repo)

	_, err := service.Create(itemContext([]string{"loc-1"}), application.CreateInput{Title: "x", LocationID: "loc-2"})
	if !errors.Is(err, auth.ErrLocationForbidden) {
		t.Fatalf("expected ErrLocationForbidden, got %v", err)
	}
}

func TestUpdate_PatchesFields(t *testing.T) {
	repo := actionitemsmem.NewItemRepository()
	service, _ := application.NewService(repo)

	item, err := service.Create(itemContext(nil), application.CreateInput{Title: "Check footfall sensor"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := service.Update(itemContext(nil), item.ID, application.UpdateInput{Status: actionitems.StatusDone, Assignee: "alex"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != actionitems.StatusDone || updated.Assignee != "alex" {
		t.Fatalf("unexpected item: %+v", updated)
	}
	if updated.Title != "Check footfall sensor" {
		t.Fatalf("untouched field changed: %q", updated.Title)
	}
}

func TestUpdate_CrossTenantLooksLikeMissing(t *testing.T) {
	repo := actionitemsmem.NewItemRepository()
	service, _ := application.NewService(repo)

	item, err := service.Create(itemContext(nil), application.CreateInput{Title: "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	foreign := auth.WithIdentity(context.Background(), auth.Identity{OrgID: "org-b", Role: auth.RoleManager})
	if _, err := service.Update(foreign, item.ID, application.UpdateInput{Status: actionitems.StatusDone}); !errors.Is(err, actionitems.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_FiltersByAssignee(t *testing.T) {
	repo := actionitemsmem.NewItemRepository()
	service, _ := application.NewService(repo)

	if _, err := service.Create(itemContext(nil), application.CreateInput{Title: "a", Assignee: "sam"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Create(itemContext(nil), application.CreateInput{Title: "b", Assignee: "alex"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	items, err := service.List(itemContext(nil), application.ListFilter{Assignee: "sam"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Assignee != "sam" {
		t.Fatalf("expected sam's item only, got %v", items)
	}
}
