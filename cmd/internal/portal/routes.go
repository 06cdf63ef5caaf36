package portal

import "projectbank/cmd/internal/guard"

// Page is one navigable portal screen.
type Page struct {
	Pattern     string
	Name        string
	Title       string
	Description string
	Rule        guard.Rule
}

var (
	authOnly = guard.Rule{Requirement: guard.RequiresAuth}
	anonOnly = guard.Rule{Requirement: guard.RequiresAnonymous}
	public   = guard.Rule{Requirement: guard.Public}
)

// Pages is the route table. Every entry is served behind the guard.
var Pages = []Page{
	{Pattern: "/{$}", Name: "home", Title: "RCEW Project Bank", Description: "Academic projects by the students of RCEW", Rule: public},
	{Pattern: "/browse", Name: "browse", Title: "Browse Projects", Description: "Explore projects across departments", Rule: public},
	{Pattern: "/project/{id}", Name: "project", Title: "Project Details", Rule: public},

	{Pattern: "/upload", Name: "upload", Title: "Upload Project", Description: "Share your project with the RCEW community", Rule: authOnly},
	{Pattern: "/profile", Name: "profile", Title: "My Profile", Rule: authOnly},
	{Pattern: "/edit-profile", Name: "edit_profile", Title: "Edit Profile", Rule: authOnly},

	{Pattern: "/login", Name: "login", Title: "Sign In", Description: "Sign in to your RCEW Project Bank account", Rule: anonOnly},
	{Pattern: "/register", Name: "register", Title: "Create Account", Description: "Join the RCEW Project Bank", Rule: anonOnly},

	{Pattern: "/about", Name: "placeholder", Title: "About RCEW", Description: "Learn more about Rajasthan College of Engineering for Women", Rule: public},
	{Pattern: "/categories", Name: "placeholder", Title: "Project Categories", Description: "Browse projects by category and department", Rule: public},
	{Pattern: "/leaderboard", Name: "placeholder", Title: "Leaderboard", Description: "Top contributors and most popular projects", Rule: public},
	{Pattern: "/help", Name: "placeholder", Title: "Help Center", Description: "Guidelines and support for using the project bank", Rule: public},
	{Pattern: "/guidelines", Name: "placeholder", Title: "Submission Guidelines", Description: "Rules and best practices for project submissions", Rule: public},
	{Pattern: "/contact", Name: "placeholder", Title: "Contact Us", Description: "Get in touch with the RCEW Project Bank team", Rule: public},
	{Pattern: "/feedback", Name: "placeholder", Title: "Feedback", Description: "Share your thoughts and suggestions", Rule: public},
	{Pattern: "/departments", Name: "placeholder", Title: "Departments", Description: "Information about engineering departments at RCEW", Rule: public},
	{Pattern: "/faculty", Name: "placeholder", Title: "Faculty", Description: "Meet our distinguished faculty members", Rule: public},
	{Pattern: "/news", Name: "placeholder", Title: "News & Events", Description: "Latest updates and events from RCEW", Rule: public},
}

// PageFor returns the route table entry for pattern.
func PageFor(pattern string) (Page, bool) {
	for _, p := range Pages {
		if p.Pattern == pattern {
			return p, true
		}
	}
	return Page{}, false
}
