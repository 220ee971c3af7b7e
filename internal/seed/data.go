package seed

import (
	"affiliate-blog/internal/affiliate"
	"affiliate-blog/internal/blog"
)

// DemoEarnings is the total_earnings figure shown on a freshly seeded dashboard.
const DemoEarnings = 4385

const loremContent = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Nullam in dui mauris."

func demoPosts() []blog.Post {
	return []blog.Post{
		{Title: "How to Increase Your Affiliate Marketing Conversions in 2023", Status: blog.StatusPublished, Category: "Marketing", Author: "Sarah Johnson", Views: 1245},
		{Title: "The Complete Guide to SEO for Affiliate Sites", Status: blog.StatusPublished, Category: "SEO", Author: "Michael Chen", Views: 890},
		{Title: "Best Product Review Templates That Convert", Status: blog.StatusDraft, Category: "Content", Author: "Jessica Adams"},
		{Title: "Affiliate Marketing Legal Requirements You Should Know", Status: blog.StatusPublished, Category: "Legal", Author: "Robert Martinez", Views: 756},
		{Title: "How to Choose the Right Affiliate Programs for Your Niche", Status: blog.StatusPublished, Category: "Strategy", Author: "David Wilson", Views: 623},
		{Title: "Email Marketing Strategies for Affiliate Promotions", Status: blog.StatusDraft, Category: "Email", Author: "Laura Thompson"},
	}
}

func rating(v float64) *float64 { return &v }

func demoPrograms() []affiliate.Program {
	return []affiliate.Program{
		{
			Name:             "Amazon Associates",
			Description:      "One of the largest affiliate programs with millions of products across various categories.",
			Category:         "Retail",
			Commission:       "1-10%",
			CookieDuration:   "24 hours",
			PaymentThreshold: "$10",
			Rating:           rating(4.5),
			Website:          "https://affiliate-program.amazon.com/",
			Logo:             unsplash("1523474253046-8cd2748b5fd2"),
			Status:           affiliate.StatusActive,
		},
		{
			Name:             "ShareASale",
			Description:      "A large affiliate network with thousands of merchants across various niches.",
			Category:         "Network",
			Commission:       "Varies",
			CookieDuration:   "30 days",
			PaymentThreshold: "$50",
			Rating:           rating(4.2),
			Website:          "https://www.shareasale.com/",
			Logo:             unsplash("1454165804606-c3d57bc86b40"),
			Status:           affiliate.StatusActive,
		},
		{
			Name:             "Awin",
			Description:      "Global affiliate network with advertisers across retail, telecom, travel and finance.",
			Category:         "Network",
			Commission:       "Varies",
			CookieDuration:   "30-45 days",
			PaymentThreshold: "$20",
			Rating:           rating(4.3),
			Website:          "https://www.awin.com/",
			Logo:             unsplash("1551288049-bebda4e38f71"),
			Status:           affiliate.StatusPending,
		},
		{
			Name:             "ClickBank",
			Description:      "Specializes in digital products including e-books, software, and online courses.",
			Category:         "Digital Products",
			Commission:       "50-75%",
			CookieDuration:   "60 days",
			PaymentThreshold: "$10",
			Rating:           rating(4.0),
			Website:          "https://www.clickbank.com/",
			Logo:             unsplash("1460925895917-afdab827c52f"),
			Status:           affiliate.StatusInactive,
		},
		{
			Name:             "CJ Affiliate",
			Description:      "Premium affiliate marketing with major retail, travel, and financial brands.",
			Category:         "Network",
			Commission:       "Varies",
			CookieDuration:   "30 days",
			PaymentThreshold: "$50",
			Rating:           rating(4.4),
			Website:          "https://www.cj.com/",
			Logo:             unsplash("1507679799987-c73779587ccf"),
			Status:           affiliate.StatusActive,
		},
	}
}

func unsplash(id string) string {
	return "https://images.unsplash.com/photo-" + id + "?ixlib=rb-1.2.1&auto=format&fit=crop&w=1350&q=80"
}
