package ingest

import (
	"strings"
	"testing"
)

func catalogLoader() Loader {
	known := map[string]bool{"bangalore": true, "mumbai": true, "delhi": true, "pune": true}
	return Loader{KnownLocation: func(tag string) bool { return known[tag] }}
}

func TestPilotsParsing(t *testing.T) {
	input := `id,name,skills,certifications,location,status,current_assignment,available_from
P1,Asha Rao,"thermal, lidar","night-ops",bangalore,Available,,2025-03-01
P2,Vikram Shetty,mapping,,mumbai,Assigned,PRJ001,
`
	pilots, err := catalogLoader().Pilots(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse pilots: %v", err)
	}
	if len(pilots) != 2 {
		t.Fatalf("expected 2 pilots, got %d", len(pilots))
	}
	p1 := pilots[0]
	if len(p1.Skills) != 2 || p1.Skills[0] != "thermal" || p1.Skills[1] != "lidar" {
		t.Fatalf("skills not split and trimmed: %v", p1.Skills)
	}
	if p1.CurrentAssignment != nil {
		t.Fatal("empty assignment should normalize to nil")
	}
	if p1.AvailableFrom == nil || p1.AvailableFrom.Day() != 1 {
		t.Fatalf("available_from not parsed: %v", p1.AvailableFrom)
	}
	p2 := pilots[1]
	if len(p2.Certifications) != 0 {
		t.Fatalf("empty list field should be empty list, got %v", p2.Certifications)
	}
	if p2.CurrentAssignment == nil || *p2.CurrentAssignment != "PRJ001" {
		t.Fatalf("assignment not kept: %v", p2.CurrentAssignment)
	}
}

func TestPilotsRejectsUnknownLocation(t *testing.T) {
	input := `id,name,skills,certifications,location,status
P1,Asha Rao,thermal,,atlantis,Available
`
	if _, err := catalogLoader().Pilots(strings.NewReader(input)); err == nil {
		t.Fatal("expected unknown location error")
	}
}

func TestPilotsRejectsMissingColumn(t *testing.T) {
	input := `id,name,skills,location,status
P1,Asha Rao,thermal,bangalore,Available
`
	if _, err := catalogLoader().Pilots(strings.NewReader(input)); err == nil {
		t.Fatal("expected missing column error")
	}
}

func TestDronesParsing(t *testing.T) {
	input := `id,model,capabilities,status,location,current_assignment,maintenance_due
D1,AgriScan X2,"thermal, mapping",Maintenance,pune,,2025-04-15T00:00:00Z
`
	drones, err := catalogLoader().Drones(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse drones: %v", err)
	}
	if drones[0].MaintenanceDue == nil {
		t.Fatal("maintenance_due not parsed")
	}
	if drones[0].Status != "Maintenance" {
		t.Fatalf("status = %q", drones[0].Status)
	}
}

func TestMissionsRejectsMalformedDate(t *testing.T) {
	input := `id,client,location,required_skills,required_certs,start_date,end_date,priority
PRJ001,AgriCorp,pune,thermal,,not-a-date,2025-03-10,High
`
	if _, err := catalogLoader().Missions(strings.NewReader(input)); err == nil {
		t.Fatal("expected date parse error")
	}
}

func TestMissionsRejectsInvertedInterval(t *testing.T) {
	input := `id,client,location,required_skills,required_certs,start_date,end_date,priority
PRJ001,AgriCorp,pune,thermal,,2025-03-10,2025-03-05,High
`
	if _, err := catalogLoader().Missions(strings.NewReader(input)); err == nil {
		t.Fatal("expected inverted interval error")
	}
}

func TestMissionsOptionalLinks(t *testing.T) {
	input := `id,client,location,required_skills,required_certs,start_date,end_date,priority,assigned_pilot,assigned_drone
PRJ001,AgriCorp,pune,"thermal, mapping",night-ops,2025-03-05,2025-03-10,Urgent,P1,
`
	missions, err := catalogLoader().Missions(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse missions: %v", err)
	}
	m := missions[0]
	if m.AssignedPilot == nil || *m.AssignedPilot != "P1" {
		t.Fatalf("assigned_pilot not kept: %v", m.AssignedPilot)
	}
	if m.AssignedDrone != nil {
		t.Fatal("empty assigned_drone should be nil")
	}
	if !m.Urgent() {
		t.Fatal("Urgent priority should report urgent")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" thermal , , lidar ")
	if len(got) != 2 || got[0] != "thermal" || got[1] != "lidar" {
		t.Fatalf("splitList = %v", got)
	}
	if got := splitList(""); len(got) != 0 {
		t.Fatalf("empty field should yield empty list, got %v", got)
	}
}
