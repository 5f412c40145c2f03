package page

import "github.com/timfel/ha-display/internal/config"

// Kind is what a touch asks the main loop to do.
type Kind int

const (
	NoAction Kind = iota
	NavigateNext
	NavigatePrev
	Activate
)

func (k Kind) String() string {
	switch k {
	case NavigateNext:
		return "next"
	case NavigatePrev:
		return "prev"
	case Activate:
		return "activate"
	default:
		return "none"
	}
}

// TargetKind distinguishes what an Activate action triggers.
type TargetKind int

const (
	// TargetScene calls a hub script.
	TargetScene TargetKind = iota
	// TargetShutdown powers the panel off.
	TargetShutdown
	// TargetRefresh only redraws the current page.
	TargetRefresh
)

// Target is the subject of an Activate action.
type Target struct {
	Kind  TargetKind
	Scene string
}

// Action is the result of interpreting one touch.
type Action struct {
	Kind   Kind
	Target Target
}

func (a Action) String() string {
	if a.Kind != Activate {
		return a.Kind.String()
	}
	switch a.Target.Kind {
	case TargetShutdown:
		return "activate(shutdown)"
	case TargetRefresh:
		return "activate(refresh)"
	default:
		return "activate(" + a.Target.Scene + ")"
	}
}

func activateScene(name string) Action {
	return Action{Kind: Activate, Target: Target{Kind: TargetScene, Scene: name}}
}

// Interpret maps a touch at (row, col) on page p to an action. It has no
// side effects.
func Interpret(p Page, row, col int, scenes config.Scenes) Action {
	switch {
	case row < NextBelow:
		return Action{Kind: NavigateNext}
	case row > PrevAbove:
		return Action{Kind: NavigatePrev}
	case row > ActionTop && row < ActionBottom:
		return activate(p, col, scenes)
	default:
		return Action{Kind: NoAction}
	}
}

func activate(p Page, col int, scenes config.Scenes) Action {
	switch p {
	case MovieOn:
		return activateScene(scenes.MovieOn)
	case MovieOff:
		return activateScene(scenes.MovieOff)
	case Airplay:
		return activateScene(scenes.Airplay)
	case ButtonPage:
		i, ok := ButtonZone(col)
		if !ok {
			return Action{Kind: NoAction}
		}
		return activateScene([ButtonCount]string{scenes.CleanDining, scenes.CleanKitchen, scenes.CleanEntrance}[i])
	case PowerStats:
		return Action{Kind: Activate, Target: Target{Kind: TargetRefresh}}
	case Shutdown:
		return Action{Kind: Activate, Target: Target{Kind: TargetShutdown}}
	default:
		return Action{Kind: NoAction}
	}
}
