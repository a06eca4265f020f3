package medical

import (
	"github.com/RobinCoderZhao/mcp-apps/internal/directory"
	"github.com/RobinCoderZhao/mcp-apps/internal/scheduling"
	"github.com/RobinCoderZhao/mcp-apps/pkg/mcpserver"
)

// Register adds the medical tools and resources to s.
func Register(s *mcpserver.Server, store directory.Store, booker *scheduling.Booker, format *Formatter, widget WidgetOptions) error {
	if err := RegisterResources(s, store, widget); err != nil {
		return err
	}
	s.RegisterTools(
		NewSearchDoctorsTool(store, format),
		NewAvailableSlotsTool(store, booker.Resolver(), format),
		NewScheduleAppointmentTool(booker, format),
	)
	return nil
}
