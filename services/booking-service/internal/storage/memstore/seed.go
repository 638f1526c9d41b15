package memstore

import (
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// SeedDemo loads a small clinic: two practitioners with weekday hours, one
// location and two patients.
func (s *Store) SeedDemo() {
	s.AddLocation("loc-main")
	s.AddPatient(model.Patient{ID: "pat-1", FirstName: "Farhana", LastName: "Akter", Phone: "+8801711000001"})
	s.AddPatient(model.Patient{ID: "pat-2", FirstName: "Imran", LastName: "Hossain", Email: "imran@example.com"})

	for _, id := range []string{"prac-derm", "prac-aesthetic"} {
		s.AddPractitioner(id)
		var hours []model.WorkingHours
		for d := time.Sunday; d <= time.Thursday; d++ {
			hours = append(hours,
				model.WorkingHours{PractitionerID: id, Weekday: d, Start: model.NewTimeOfDay(9, 0), End: model.NewTimeOfDay(13, 0), SlotMinutes: 30},
				model.WorkingHours{PractitionerID: id, Weekday: d, Start: model.NewTimeOfDay(14, 0), End: model.NewTimeOfDay(18, 0), SlotMinutes: 30},
			)
		}
		s.mu.Lock()
		s.hours[id] = hours
		s.mu.Unlock()
	}
}
