package session

import "os/exec"

// Dependency describes a required host executable and how to install it.
type Dependency struct {
	Name         string   `json:"name"`
	Executable   string   `json:"executable"`
	Description  string   `json:"description"`
	InstallHints []string `json:"install_hints"`
}

// DependencyReport is the result of probing the host for required binaries.
type DependencyReport struct {
	Missing    []Dependency `json:"missing"`
	AllPresent bool         `json:"all_present"`
}

var requiredDependencies = []Dependency{
	{
		Name:        "Xpra",
		Executable:  "xpra",
		Description: "Remote display server hosting the isolated Firefox session",
		InstallHints: []string{
			"apt install -y xpra",
			"dnf install -y xpra",
			"conda install -c conda-forge xpra",
		},
	},
	{
		Name:        "Firefox",
		Executable:  "firefox",
		Description: "Web browser launched inside the session",
		InstallHints: []string{
			"apt install -y firefox",
			"dnf install -y firefox",
		},
	},
	{
		Name:        "Xvfb",
		Executable:  "Xvfb",
		Description: "Virtual framebuffer for the headless display",
		InstallHints: []string{
			"apt install -y xvfb",
			"dnf install -y xorg-x11-server-Xvfb",
		},
	},
}

// CheckDependencies probes PATH for every required executable. A missing
// dependency is reported, never fatal; launch maps it to a typed error.
func CheckDependencies() DependencyReport {
	report := DependencyReport{AllPresent: true}
	for _, dep := range requiredDependencies {
		if _, err := exec.LookPath(dep.Executable); err != nil {
			report.Missing = append(report.Missing, dep)
			report.AllPresent = false
		}
	}
	return report
}
